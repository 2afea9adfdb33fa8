package telemetrystore

import (
	"context"
	"fmt"

	"github.com/oriys/iotagent/internal/logging"
	"github.com/oriys/iotagent/internal/plugin"
)

// Auditing wraps an underlying plugin.Plugin and mirrors every
// Publish call into a Store before forwarding it, so a deployment can
// opt into a durable local record of everything the device ever
// published without the core dispatcher or pools knowing the sink
// exists. Every other hook passes straight through.
type Auditing struct {
	plugin.Plugin
	Store    *Store
	DeviceID string
}

var _ plugin.Plugin = (*Auditing)(nil)

// Publish records s to the Store, then forwards the call to the
// wrapped plugin regardless of whether recording succeeded — a
// telemetry audit-trail failure must never block delivery to the
// cloud plugin.
func (a *Auditing) Publish(ctx context.Context, s plugin.Sample) error {
	if a.Store != nil {
		kind := fmt.Sprintf("%T", s.Value)
		rendered := fmt.Sprintf("%v", s.Value)
		if err := a.Store.RecordSample(ctx, a.DeviceID, s.Name, kind, rendered, s.Timestamp); err != nil {
			logging.Op().Warn("telemetrystore: record sample failed", "name", s.Name, "err", err)
		}
	}
	return a.Plugin.Publish(ctx, s)
}
