package snapwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type header struct {
	Op             uint32
	Split          uint64
	NumSplitInos   uint32
	NumSplitRealms uint32
	TraceLen       uint32
}

type recordHeader struct {
	Ino                 uint64
	Parent              uint64
	Seq                 uint64
	Created             uint64
	ParentSince         uint64
	NumSnaps            uint32
	NumPriorParentSnaps uint32
}

// Decode parses a raw snap message per §6. It never partially applies a
// message: on any error the caller should drop the message and log, per
// §7's Malformed error kind.
func Decode(b []byte) (*Message, error) {
	r := bytes.NewReader(b)
	total := len(b)

	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}

	msg := &Message{Op: Opcode(hdr.Op), Split: hdr.Split}

	msg.SplitInos = make([]uint64, hdr.NumSplitInos)
	if err := readU64s(r, msg.SplitInos); err != nil {
		return nil, err
	}

	msg.SplitRealms = make([]uint64, hdr.NumSplitRealms)
	if err := readU64s(r, msg.SplitRealms); err != nil {
		return nil, err
	}

	traceStart := total - r.Len()
	traceEnd := traceStart + int(hdr.TraceLen)
	if traceEnd < traceStart || traceEnd > total {
		return nil, fmt.Errorf("%w: trace_len overruns message", ErrMalformed)
	}

	for total-r.Len() < traceEnd {
		rec, err := decodeRecord(r)
		if err != nil {
			return nil, err
		}
		if total-r.Len() > traceEnd {
			return nil, fmt.Errorf("%w: trace record overruns trace_len", ErrMalformed)
		}
		msg.Trace = append(msg.Trace, rec)
	}
	if total-r.Len() != traceEnd {
		return nil, fmt.Errorf("%w: trailing bytes in trace", ErrMalformed)
	}
	if traceEnd != total {
		return nil, fmt.Errorf("%w: trailing bytes after trace", ErrMalformed)
	}

	return msg, nil
}

func decodeRecord(r *bytes.Reader) (Record, error) {
	var hdr recordHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Record{}, fmt.Errorf("%w: trace record header: %v", ErrMalformed, err)
	}

	rec := Record{
		Ino:         hdr.Ino,
		Parent:      hdr.Parent,
		Seq:         hdr.Seq,
		Created:     hdr.Created,
		ParentSince: hdr.ParentSince,
	}

	if hdr.NumSnaps > 0 {
		rec.Snaps = make([]uint64, hdr.NumSnaps)
	}
	if err := readU64s(r, rec.Snaps); err != nil {
		return Record{}, err
	}

	if hdr.NumPriorParentSnaps > 0 {
		rec.PriorParentSnaps = make([]uint64, hdr.NumPriorParentSnaps)
	}
	if err := readU64s(r, rec.PriorParentSnaps); err != nil {
		return Record{}, err
	}

	return rec, nil
}

func readU64s(r *bytes.Reader, out []uint64) error {
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return nil
}
