package agentlib

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/plugin"
	"github.com/oriys/iotagent/internal/value"
)

func newTestLibrary(t *testing.T) (*Library, *plugin.Loopback) {
	t.Helper()
	lb := plugin.NewLoopback()
	lib, err := Initialize(Config{IdentityPath: filepath.Join(t.TempDir(), "device-id")}, lb)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return lib, lb
}

func TestInitializeGeneratesDeviceID(t *testing.T) {
	lib, _ := newTestLibrary(t)
	if lib.DeviceID() == "" {
		t.Fatal("expected a non-empty device id")
	}
}

func TestRegisterTelemetryIsIdempotent(t *testing.T) {
	lib, lb := newTestLibrary(t)
	ctx := context.Background()

	first, err := lib.RegisterTelemetry(ctx, "temperature", value.KindFloat64)
	if err != nil {
		t.Fatalf("RegisterTelemetry: %v", err)
	}
	second, err := lib.RegisterTelemetry(ctx, "temperature", value.KindFloat64)
	if err != nil {
		t.Fatalf("RegisterTelemetry (second): %v", err)
	}
	if first != second {
		t.Fatal("expected the second registration to return the same pooled entry")
	}
	if len(lb.Registers) != 2 {
		t.Fatalf("expected 2 Register calls (idempotent success each time), got %d", len(lb.Registers))
	}
}

func TestPublishRequiresRegisteredTelemetry(t *testing.T) {
	lib, _ := newTestLibrary(t)
	ctx := context.Background()

	if err := lib.Publish(ctx, "unregistered", value.Int64(1), nil); err == nil {
		t.Fatal("expected an error publishing to an unregistered channel")
	}

	if _, err := lib.RegisterTelemetry(ctx, "humidity", value.KindInt64); err != nil {
		t.Fatalf("RegisterTelemetry: %v", err)
	}
	if err := lib.Publish(ctx, "humidity", value.Int64(42), nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestRaiseAlarmDeliversThroughPlugin(t *testing.T) {
	lib, lb := newTestLibrary(t)
	ctx := context.Background()

	if _, err := lib.RegisterAlarm(ctx, "overheat"); err != nil {
		t.Fatalf("RegisterAlarm: %v", err)
	}
	if err := lib.RaiseAlarm(ctx, "overheat", SeverityCritical, "temperature exceeded threshold"); err != nil {
		t.Fatalf("RaiseAlarm: %v", err)
	}
	if lb.SampleCount() != 1 {
		t.Fatalf("SampleCount = %d, want 1", lb.SampleCount())
	}
}

func TestExecuteDispatchesThroughCallbackAction(t *testing.T) {
	lib, lb := newTestLibrary(t)
	ctx := context.Background()

	done := make(chan struct{})
	decl := action.New("reboot")
	decl.Handler = action.Handler{
		Kind: action.HandlerCallback,
		Callback: func(ctx context.Context, req *action.Request) error {
			close(done)
			return nil
		},
	}
	if _, err := lib.RegisterAction(ctx, decl); err != nil {
		t.Fatalf("RegisterAction: %v", err)
	}

	lib.Start()
	defer lib.Terminate(ctx, time.Second)

	req := action.NewRequest("req-1", "reboot")
	if err := lib.Execute(req); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback to run")
	}

	deadline := time.Now().Add(time.Second)
	for len(lb.Results) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(lb.Results) != 1 {
		t.Fatalf("expected 1 transmitted result, got %d", len(lb.Results))
	}
}

func TestTerminateIsIdempotentAndDeregistersItems(t *testing.T) {
	lib, lb := newTestLibrary(t)
	ctx := context.Background()

	if _, err := lib.RegisterTelemetry(ctx, "pressure", value.KindFloat64); err != nil {
		t.Fatalf("RegisterTelemetry: %v", err)
	}

	if err := lib.Terminate(ctx, time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if err := lib.Terminate(ctx, time.Second); err != nil {
		t.Fatalf("Terminate (second call): %v", err)
	}
	if len(lb.Deregisters) != 1 {
		t.Fatalf("expected 1 Deregister call, got %d", len(lb.Deregisters))
	}
}
