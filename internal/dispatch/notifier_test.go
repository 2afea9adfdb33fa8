package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/plugin"
	"github.com/oriys/iotagent/internal/value"
)

type countingNotifier struct {
	calls atomic.Int32
}

func (n *countingNotifier) Notify(ctx context.Context) error {
	n.calls.Add(1)
	return nil
}

func TestExecuteNotifiesConfiguredNotifier(t *testing.T) {
	actions := newActionPool()
	echo, _ := actions.Allocate("echo", func(a *action.Action) { *a = *action.New("echo") })
	_ = echo.AddParameter(action.Parameter{Name: "in", Direction: action.In, Type: value.KindString})
	echo.Handler = action.Handler{Kind: action.HandlerCallback, Callback: func(ctx context.Context, req *action.Request) error { return nil }}

	notifier := &countingNotifier{}
	lb := plugin.NewLoopback()
	d := New(actions, lb, Config{Workers: 1, Notifier: notifier})
	d.Start()
	defer d.Stop(0)

	req := action.NewRequest("r1", "echo")
	if err := d.Execute(req); err != nil {
		t.Fatalf("execute: %v", err)
	}
	waitFor(t, time.Second, func() bool { return notifier.calls.Load() == 1 })
}
