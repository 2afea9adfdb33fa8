// rpc.go declares the gRPC service contract for the bridge channel by
// hand, in the shape protoc-gen-go-grpc would generate, but carrying
// structpb.Struct payloads instead of a custom generated message type:
// the bridge channel has no .proto source of its own, so the service
// descriptor is written directly against the grpc/protobuf packages
// rather than codegen output.
package mqttplugin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// BridgeServer is the companion process's side of the control
// channel: it receives register/deregister/publish/transmit/iterate
// calls from the agent and is responsible for speaking the actual
// cloud protocol (MQTT or otherwise) on the agent's behalf.
type BridgeServer interface {
	Connect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Disconnect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Deregister(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Publish(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Transmit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Iterate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

const bridgeServiceName = "iotagent.mqttbridge.Bridge"

// RegisterBridgeServer attaches srv's methods to s under the bridge
// service name.
func RegisterBridgeServer(s grpc.ServiceRegistrar, srv BridgeServer) {
	s.RegisterService(&bridgeServiceDesc, srv)
}

func bridgeHandler(method func(BridgeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(BridgeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + bridgeServiceName + "/Call"}
		wrapped := func(ctx context.Context, req any) (any, error) {
			return method(srv.(BridgeServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, wrapped)
	}
}

var bridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: bridgeServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Connect", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return bridgeHandler(BridgeServer.Connect)(srv, ctx, dec, i)
		}},
		{MethodName: "Disconnect", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return bridgeHandler(BridgeServer.Disconnect)(srv, ctx, dec, i)
		}},
		{MethodName: "Register", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return bridgeHandler(BridgeServer.Register)(srv, ctx, dec, i)
		}},
		{MethodName: "Deregister", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return bridgeHandler(BridgeServer.Deregister)(srv, ctx, dec, i)
		}},
		{MethodName: "Publish", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return bridgeHandler(BridgeServer.Publish)(srv, ctx, dec, i)
		}},
		{MethodName: "Transmit", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return bridgeHandler(BridgeServer.Transmit)(srv, ctx, dec, i)
		}},
		{MethodName: "Iterate", Handler: func(srv any, ctx context.Context, dec func(any) error, i grpc.UnaryServerInterceptor) (any, error) {
			return bridgeHandler(BridgeServer.Iterate)(srv, ctx, dec, i)
		}},
	},
	Metadata: "internal/mqttplugin/rpc.go",
}

// bridgeClient is a thin wrapper over grpc.ClientConnInterface calling
// the bridge service's unary methods.
type bridgeClient struct {
	cc grpc.ClientConnInterface
}

func (c *bridgeClient) call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+bridgeServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
