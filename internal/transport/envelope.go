// Package transport is the wire messenger (an out-of-scope external
// collaborator per spec §1, implemented here just enough to carry snap
// messages from the MDS and flush RPCs back to it). It carries opaque
// payload bytes — the snap wire format itself is decoded by
// internal/snapwire, not here.
package transport

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope is the generic message frame exchanged between client and MDS:
// a sender id, a message type tag, and an opaque payload. It is encoded as
// valid protobuf wire format by hand (fields 1/2/3, all length-delimited),
// since this module carries no protoc-generated stubs.
type Envelope struct {
	From    string
	Type    string
	Payload []byte
}

func (e *Envelope) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, e.From)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, e.Type)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Payload)
	return b
}

func (e *Envelope) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("transport: bad envelope tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("transport: bad envelope field 1: %w", protowire.ParseError(m))
			}
			e.From = string(v)
			data = data[m:]
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("transport: bad envelope field 2: %w", protowire.ParseError(m))
			}
			e.Type = string(v)
			data = data[m:]
		case num == 3 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("transport: bad envelope field 3: %w", protowire.ParseError(m))
			}
			e.Payload = append([]byte(nil), v...)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("transport: bad envelope field %d: %w", num, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	return nil
}

// Ack is the response frame for a Deliver RPC.
type Ack struct {
	Ok    bool
	Error string
}

func (a *Ack) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	v := uint64(0)
	if a.Ok {
		v = 1
	}
	b = protowire.AppendVarint(b, v)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, a.Error)
	return b
}

func (a *Ack) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("transport: bad ack tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return fmt.Errorf("transport: bad ack field 1: %w", protowire.ParseError(m))
			}
			a.Ok = v != 0
			data = data[m:]
		case num == 2 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("transport: bad ack field 2: %w", protowire.ParseError(m))
			}
			a.Error = string(v)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("transport: bad ack field %d: %w", num, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	return nil
}
