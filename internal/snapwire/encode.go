package snapwire

import (
	"bytes"
	"encoding/binary"
)

// Encode serializes msg into the wire format Decode parses. It exists
// mainly for tests and for simulating inbound MDS traffic; production
// messages arrive already encoded from the messenger.
func (m *Message) Encode() []byte {
	var trace bytes.Buffer
	for _, rec := range m.Trace {
		rh := recordHeader{
			Ino:                 rec.Ino,
			Parent:              rec.Parent,
			Seq:                 rec.Seq,
			Created:             rec.Created,
			ParentSince:         rec.ParentSince,
			NumSnaps:            uint32(len(rec.Snaps)),
			NumPriorParentSnaps: uint32(len(rec.PriorParentSnaps)),
		}
		binary.Write(&trace, binary.LittleEndian, rh)
		writeU64s(&trace, rec.Snaps)
		writeU64s(&trace, rec.PriorParentSnaps)
	}

	hdr := header{
		Op:             uint32(m.Op),
		Split:          m.Split,
		NumSplitInos:   uint32(len(m.SplitInos)),
		NumSplitRealms: uint32(len(m.SplitRealms)),
		TraceLen:       uint32(trace.Len()),
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, hdr)
	writeU64s(&buf, m.SplitInos)
	writeU64s(&buf, m.SplitRealms)
	buf.Write(trace.Bytes())

	return buf.Bytes()
}

func writeU64s(buf *bytes.Buffer, vs []uint64) {
	for _, v := range vs {
		binary.Write(buf, binary.LittleEndian, v)
	}
}
