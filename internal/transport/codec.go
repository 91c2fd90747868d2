package transport

import "fmt"

// codec implements grpc/encoding.Codec for Envelope/Ack, forced on both
// client and server via grpc.ForceCodec/grpc.ForceServerCodec so the
// messenger never needs a protoc-generated message type.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *Envelope:
		return m.Marshal(), nil
	case *Ack:
		return m.Marshal(), nil
	default:
		return nil, fmt.Errorf("transport: codec cannot marshal %T", v)
	}
}

func (codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *Envelope:
		return m.Unmarshal(data)
	case *Ack:
		return m.Unmarshal(data)
	default:
		return fmt.Errorf("transport: codec cannot unmarshal into %T", v)
	}
}

func (codec) Name() string { return "snapwire-envelope" }
