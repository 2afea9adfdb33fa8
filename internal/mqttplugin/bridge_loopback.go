package mqttplugin

import (
	"context"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"
)

// LoopbackBridge is an in-memory BridgeServer used by tests in place
// of a real companion process: it records every call it receives,
// mirroring internal/plugin.Loopback's role on the Plugin side of this
// same channel.
type LoopbackBridge struct {
	mu sync.Mutex

	Connects    int
	Disconnects int
	Registers   []*structpb.Struct
	Deregisters []*structpb.Struct
	Publishes   []*structpb.Struct
	Transmits   []*structpb.Struct
	Iterations  []*structpb.Struct
}

var _ BridgeServer = (*LoopbackBridge)(nil)

func (b *LoopbackBridge) Connect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Connects++
	return &structpb.Struct{}, nil
}

func (b *LoopbackBridge) Disconnect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Disconnects++
	return &structpb.Struct{}, nil
}

func (b *LoopbackBridge) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Registers = append(b.Registers, req)
	return &structpb.Struct{}, nil
}

func (b *LoopbackBridge) Deregister(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Deregisters = append(b.Deregisters, req)
	return &structpb.Struct{}, nil
}

func (b *LoopbackBridge) Publish(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Publishes = append(b.Publishes, req)
	return &structpb.Struct{}, nil
}

func (b *LoopbackBridge) Transmit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Transmits = append(b.Transmits, req)
	return &structpb.Struct{}, nil
}

func (b *LoopbackBridge) Iterate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Iterations = append(b.Iterations, req)
	return &structpb.Struct{}, nil
}

// Count reports the number of Register+Deregister+Publish+Transmit
// calls observed, a quick sanity total for tests.
func (b *LoopbackBridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Registers) + len(b.Deregisters) + len(b.Publishes) + len(b.Transmits)
}
