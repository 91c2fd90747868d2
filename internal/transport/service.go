package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// serviceName is the fully-qualified gRPC service name this module's
// messenger implements. There is no .proto file behind it — the service
// is hand-wired against grpc.ServiceDesc, the same metadata protoc-gen-go
// would otherwise generate, since the messenger's payloads are the
// already-encoded snap wire format rather than a protobuf schema worth
// generating code for.
const serviceName = "snapengine.Messenger"

// MessengerServer is the server-side handler for inbound envelopes.
type MessengerServer interface {
	Deliver(ctx context.Context, in *Envelope) (*Ack, error)
}

// MessengerClient is the client stub for sending envelopes.
type MessengerClient interface {
	Deliver(ctx context.Context, in *Envelope, opts ...grpc.CallOption) (*Ack, error)
}

type messengerClient struct {
	cc grpc.ClientConnInterface
}

// NewMessengerClient wraps an established connection. Callers must have
// dialed with grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec())) so the
// envelope codec above is used instead of the default proto codec.
func NewMessengerClient(cc grpc.ClientConnInterface) MessengerClient {
	return &messengerClient{cc: cc}
}

func (c *messengerClient) Deliver(ctx context.Context, in *Envelope, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Deliver", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Messenger_Deliver_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessengerServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Deliver"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MessengerServer).Deliver(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc protoc-gen-go-grpc would otherwise
// emit for this service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MessengerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: _Messenger_Deliver_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/transport/messenger.go",
}

// RegisterMessengerServer registers srv on s using ServiceDesc.
func RegisterMessengerServer(s grpc.ServiceRegistrar, srv MessengerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Codec returns the envelope codec, for grpc.ForceCodec on both dial and
// server options.
func Codec() encoding.Codec {
	return codec{}
}
