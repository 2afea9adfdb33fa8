package agentlib

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/iotagent/internal/lifecycle"
	"github.com/oriys/iotagent/internal/metrics"
	"github.com/oriys/iotagent/internal/option"
	"github.com/oriys/iotagent/internal/plugin"
	"github.com/oriys/iotagent/internal/value"
)

// Telemetry is a named, typed channel the caller publishes samples
// under. It follows the same register/deregister lifecycle as Action,
// driven through the same plugin.Plugin.
type Telemetry struct {
	Name      string
	Type      value.Kind
	Options   *option.Store
	Lifecycle *lifecycle.Machine
}

func (t *Telemetry) ItemName() string          { return t.Name }
func (t *Telemetry) ItemKind() plugin.ItemKind { return plugin.KindTelemetry }

type telemetryRegistrar struct {
	telemetry *Telemetry
	plugin    plugin.Plugin
	ctx       context.Context
}

func (r telemetryRegistrar) Register() error   { return r.plugin.Register(r.ctx, r.telemetry) }
func (r telemetryRegistrar) Deregister() error { return r.plugin.Deregister(r.ctx, r.telemetry) }

func (t *Telemetry) Register(ctx context.Context, p plugin.Plugin) error {
	return t.Lifecycle.Register(telemetryRegistrar{telemetry: t, plugin: p, ctx: ctx})
}

func (t *Telemetry) Deregister(ctx context.Context, p plugin.Plugin) error {
	return t.Lifecycle.Deregister(telemetryRegistrar{telemetry: t, plugin: p, ctx: ctx})
}

// RegisterTelemetry allocates (or finds an existing) Telemetry named
// name with declared type kind and registers it through the plugin.
// A second call with the same name returns the existing entry rather
// than creating a duplicate, per the pool's allocation rule.
func (l *Library) RegisterTelemetry(ctx context.Context, name string, kind value.Kind) (*Telemetry, error) {
	t, err := l.telemetry.Allocate(name, func(e *Telemetry) {
		e.Name = name
		e.Type = kind
		e.Options = option.New()
		e.Lifecycle = lifecycle.NewMachine()
	})
	if err != nil {
		return nil, fmt.Errorf("agentlib: register telemetry %q: %w", name, err)
	}
	l.exportPoolStats()
	if err := t.Register(ctx, l.plug); err != nil {
		metrics.Global().RecordRegisterFailure("telemetry")
		return t, err
	}
	return t, nil
}

// DeregisterTelemetry deregisters and frees the named Telemetry.
func (l *Library) DeregisterTelemetry(ctx context.Context, name string) error {
	t, err := l.telemetry.Find(name)
	if err != nil {
		return fmt.Errorf("agentlib: deregister telemetry %q: %w", name, err)
	}
	if err := t.Deregister(ctx, l.plug); err != nil {
		metrics.Global().RecordRegisterFailure("telemetry")
		return err
	}
	err = l.telemetry.Free(name)
	l.exportPoolStats()
	return err
}

// Publish sends one sample for the named, already-registered
// Telemetry channel. A nil timestamp means "now"; the plugin receives
// a resolved time.Time either way.
func (l *Library) Publish(ctx context.Context, name string, v value.Value, timestamp *time.Time) error {
	t, err := l.telemetry.Find(name)
	if err != nil {
		return fmt.Errorf("agentlib: publish %q: %w", name, err)
	}
	if t.Lifecycle.State() != lifecycle.Registered {
		return fmt.Errorf("agentlib: publish %q: %w", name, lifecycle.ErrNotRegistered)
	}

	ts := time.Now()
	if timestamp != nil {
		ts = *timestamp
	}
	return l.plug.Publish(ctx, plugin.Sample{Name: name, Value: v, Timestamp: ts})
}
