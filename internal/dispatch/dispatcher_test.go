package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/plugin"
	"github.com/oriys/iotagent/internal/pool"
	"github.com/oriys/iotagent/internal/value"
)

func newActionPool() *pool.Pool[action.Action] {
	return pool.New[action.Action](func(a *action.Action) string { return a.Name })
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestCallbackEchoSucceeds(t *testing.T) {
	actions := newActionPool()
	echo, _ := actions.Allocate("echo", func(a *action.Action) { *a = *action.New("echo") })
	_ = echo.AddParameter(action.Parameter{Name: "in", Direction: action.InRequired, Type: value.KindString})
	_ = echo.AddParameter(action.Parameter{Name: "out", Direction: action.Out, Type: value.KindString})
	echo.Handler = action.Handler{Kind: action.HandlerCallback, Callback: func(ctx context.Context, req *action.Request) error {
		in, _ := req.Get("in")
		req.Bind("out", in)
		return nil
	}}

	lb := plugin.NewLoopback()
	d := New(actions, lb, Config{Workers: 2})
	d.Start()
	defer d.Stop(time.Second)

	req := action.NewRequest("r1", "echo")
	req.Bind("in", value.OwnedString("hello"))
	if err := d.Execute(req); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	waitFor(t, time.Second, func() bool { return lb.ResultCount() == 1 })
	res := lb.Results[0]
	if res.Status != "success" {
		t.Fatalf("status = %q, want success", res.Status)
	}
	out, ok := res.Outputs["out"].(value.Value)
	if !ok {
		t.Fatalf("out parameter missing or wrong type: %v", res.Outputs)
	}
	got, _ := out.String()
	if got != "hello" {
		t.Fatalf("out = %q, want hello", got)
	}
}

func TestMissingRequiredParameterFailsBeforeCallback(t *testing.T) {
	actions := newActionPool()
	echo, _ := actions.Allocate("echo", func(a *action.Action) { *a = *action.New("echo") })
	_ = echo.AddParameter(action.Parameter{Name: "in", Direction: action.InRequired, Type: value.KindString})
	called := false
	echo.Handler = action.Handler{Kind: action.HandlerCallback, Callback: func(ctx context.Context, req *action.Request) error {
		called = true
		return nil
	}}

	lb := plugin.NewLoopback()
	d := New(actions, lb, Config{Workers: 1})
	d.Start()
	defer d.Stop(time.Second)

	req := action.NewRequest("r1", "echo")
	_ = d.Execute(req)

	waitFor(t, time.Second, func() bool { return lb.ResultCount() == 1 })
	if called {
		t.Fatal("callback must not run when a required parameter is missing")
	}
	if lb.Results[0].Status != "bad_request" {
		t.Fatalf("status = %q, want bad_request", lb.Results[0].Status)
	}
}

func TestUnknownActionCompletesWithErrorAndFreesSlot(t *testing.T) {
	actions := newActionPool()
	lb := plugin.NewLoopback()
	d := New(actions, lb, Config{Workers: 1})
	d.Start()
	defer d.Stop(time.Second)

	req := action.NewRequest("r1", "ghost")
	_ = d.Execute(req)

	waitFor(t, time.Second, func() bool { return lb.ResultCount() == 1 })
	if lb.Results[0].Status != "not_found" {
		t.Fatalf("status = %q, want not_found", lb.Results[0].Status)
	}
	waitFor(t, time.Second, func() bool { return d.Stats().Free == Max })
}

func TestQueueFullWhenAllSlotsWaiting(t *testing.T) {
	actions := newActionPool()
	block, _ := actions.Allocate("block", func(a *action.Action) { *a = *action.New("block") })
	started := make(chan struct{})
	release := make(chan struct{})
	block.Handler = action.Handler{Kind: action.HandlerCallback, Callback: func(ctx context.Context, req *action.Request) error {
		close(started)
		<-release
		return nil
	}}

	lb := plugin.NewLoopback()
	d := New(actions, lb, Config{Workers: 0}) // no workers draining: everything stays Waiting
	defer close(release)

	for i := 0; i < Max; i++ {
		req := action.NewRequest("r", "block")
		if err := d.Execute(req); err != nil {
			t.Fatalf("Execute #%d: %v", i, err)
		}
	}
	if err := d.Execute(action.NewRequest("overflow", "block")); !errors.Is(err, ErrFull) {
		t.Fatalf("got %v, want ErrFull", err)
	}
	stats := d.Stats()
	if stats.Waiting != Max || stats.Free != 0 {
		t.Fatalf("Stats() = %+v, want Waiting=%d Free=0", stats, Max)
	}
}

func TestExclusiveActionSerializesConcurrentInvocations(t *testing.T) {
	actions := newActionPool()
	write, _ := actions.Allocate("write", func(a *action.Action) { *a = *action.New("write") })
	write.Flags |= action.FlagExclusive

	var running int32
	var sawOverlap bool
	var mu = make(chan struct{}, 1)
	write.Handler = action.Handler{Kind: action.HandlerCallback, Callback: func(ctx context.Context, req *action.Request) error {
		mu <- struct{}{}
		running++
		if running > 1 {
			sawOverlap = true
		}
		time.Sleep(20 * time.Millisecond)
		running--
		<-mu
		return nil
	}}

	lb := plugin.NewLoopback()
	d := New(actions, lb, Config{Workers: 2})
	d.Start()
	defer d.Stop(time.Second)

	_ = d.Execute(action.NewRequest("r1", "write"))
	_ = d.Execute(action.NewRequest("r2", "write"))

	waitFor(t, 2*time.Second, func() bool { return lb.ResultCount() == 2 })
	if sawOverlap {
		t.Fatal("Exclusive action handlers must not run concurrently")
	}
}
