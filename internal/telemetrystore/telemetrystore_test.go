package telemetrystore

import (
	"context"
	"testing"
	"time"

	"github.com/oriys/iotagent/internal/plugin"
)

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestAuditingForwardsPublishWithNilStore(t *testing.T) {
	lb := plugin.NewLoopback()
	a := &Auditing{Plugin: lb, DeviceID: "dev-1"}

	s := plugin.Sample{Name: "temp", Value: 21.5, Timestamp: time.Now()}
	if err := a.Publish(context.Background(), s); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := lb.SampleCount(); got != 1 {
		t.Fatalf("expected wrapped plugin to receive the sample, got %d", got)
	}
}

func TestAuditingPassesThroughOtherHooks(t *testing.T) {
	lb := plugin.NewLoopback()
	a := &Auditing{Plugin: lb, DeviceID: "dev-1"}

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if lb.Connects != 1 {
		t.Fatalf("expected Connect to pass through, got %d calls", lb.Connects)
	}
}
