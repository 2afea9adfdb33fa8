// Package mqttplugin is a reference plugin.Plugin implementation that
// talks to a companion bridge process over gRPC rather than embedding
// an MQTT client directly. The bridge process owns the actual cloud
// protocol; this plugin only carries register/publish/transmit events
// across that one internal control channel.
package mqttplugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oriys/iotagent/internal/logging"
	"github.com/oriys/iotagent/internal/plugin"
)

// ErrNotConnected is returned by Register, Deregister, Publish and
// Transmit when called before the bridge connection has been
// established; Disconnect and Iterate return nil in that case.
var ErrNotConnected = errors.New("mqttplugin: not connected")

// Config configures a Plugin's connection to the bridge process.
type Config struct {
	// Addr is the bridge process's gRPC listen address, e.g. "localhost:7443".
	Addr string
}

// Plugin dials a bridge process and forwards every plugin.Plugin hook
// across that connection as a unary gRPC call.
type Plugin struct {
	cfg    Config
	conn   *grpc.ClientConn
	client *bridgeClient
}

// New dials addr lazily: the connection is established on the first
// Connect call, matching the plugin contract's "connect(timeout) may
// block until the plugin signals completion" semantics.
func New(cfg Config) *Plugin {
	return &Plugin{cfg: cfg}
}

var _ plugin.Plugin = (*Plugin)(nil)

func (p *Plugin) Connect(ctx context.Context) error {
	conn, err := grpc.NewClient(p.cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("mqttplugin: dial %s: %w", p.cfg.Addr, err)
	}
	p.conn = conn
	p.client = &bridgeClient{cc: conn}
	logging.Op().Info("mqttplugin connected", "addr", p.cfg.Addr)
	return nil
}

func (p *Plugin) Disconnect(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.client = nil
	return err
}

func (p *Plugin) Register(ctx context.Context, item plugin.Item) error {
	if p.client == nil {
		return ErrNotConnected
	}
	in, err := structpb.NewStruct(map[string]any{
		"name": item.ItemName(),
		"kind": itemKindName(item.ItemKind()),
	})
	if err != nil {
		return err
	}
	_, err = p.client.call(ctx, "Register", in)
	return err
}

func (p *Plugin) Deregister(ctx context.Context, item plugin.Item) error {
	if p.client == nil {
		return ErrNotConnected
	}
	in, err := structpb.NewStruct(map[string]any{
		"name": item.ItemName(),
		"kind": itemKindName(item.ItemKind()),
	})
	if err != nil {
		return err
	}
	_, err = p.client.call(ctx, "Deregister", in)
	return err
}

func (p *Plugin) Publish(ctx context.Context, s plugin.Sample) error {
	if p.client == nil {
		return ErrNotConnected
	}
	in, err := structpb.NewStruct(map[string]any{
		"name":      s.Name,
		"value":     fmt.Sprintf("%v", s.Value),
		"timestamp": s.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	_, err = p.client.call(ctx, "Publish", in)
	return err
}

func (p *Plugin) Transmit(ctx context.Context, r plugin.RequestResult) error {
	if p.client == nil {
		return ErrNotConnected
	}
	outputs := make(map[string]any, len(r.Outputs))
	for k, v := range r.Outputs {
		outputs[k] = fmt.Sprintf("%v", v)
	}
	in, err := structpb.NewStruct(map[string]any{
		"action_name": r.ActionName,
		"request_id":  r.RequestID,
		"status":      r.Status,
		"outputs":     outputs,
	})
	if err != nil {
		return err
	}
	_, err = p.client.call(ctx, "Transmit", in)
	return err
}

func (p *Plugin) Iterate(ctx context.Context, timeout time.Duration) error {
	if p.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	in, err := structpb.NewStruct(map[string]any{"timeout_ms": timeout.Milliseconds()})
	if err != nil {
		return err
	}
	_, err = p.client.call(ctx, "Iterate", in)
	return err
}

func itemKindName(k plugin.ItemKind) string {
	switch k {
	case plugin.KindTelemetry:
		return "telemetry"
	case plugin.KindAction:
		return "action"
	case plugin.KindAlarm:
		return "alarm"
	default:
		return "unknown"
	}
}
