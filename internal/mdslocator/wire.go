package mdslocator

import (
	"bytes"
	"encoding/binary"

	"github.com/snaprealm/client/internal/capsnap"
)

// encodeCapSnapBatch serializes a flush batch for one inode: ino, the
// count of cap_snaps, then each cap_snap's seq/follows/issued/size/mtime/
// atime/ctime (times as unix nanos)/timewarpseq, little-endian, mirroring the byte-oriented
// convention snapwire uses for the trace wire format. This stands in for
// the real MDS flush RPC payload, which is out of this spec's scope.
func encodeCapSnapBatch(ino uint64, snaps []*capsnap.CapSnap) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, ino)
	binary.Write(&buf, binary.LittleEndian, uint32(len(snaps)))

	for _, cs := range snaps {
		binary.Write(&buf, binary.LittleEndian, cs.Context.Seq())
		binary.Write(&buf, binary.LittleEndian, cs.Follows)
		binary.Write(&buf, binary.LittleEndian, cs.Issued)
		binary.Write(&buf, binary.LittleEndian, cs.Size)
		binary.Write(&buf, binary.LittleEndian, uint64(cs.Mtime.UnixNano()))
		binary.Write(&buf, binary.LittleEndian, uint64(cs.Atime.UnixNano()))
		binary.Write(&buf, binary.LittleEndian, uint64(cs.Ctime.UnixNano()))
		binary.Write(&buf, binary.LittleEndian, cs.TimeWarpSeq)
	}

	return buf.Bytes()
}
