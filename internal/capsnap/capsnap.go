// Package capsnap implements the per-inode capability-snapshot lifecycle
// (component C6): queueing a capture against a snap context, coordinating
// with an in-flight writer before the capture's metadata can be frozen, and
// the flush-list driver that hands finished captures to the MDS.
package capsnap

import (
	"time"

	"github.com/snaprealm/client/internal/snapcontext"
)

// CapSnap is a single inode's capture of its state as of one snapshot
// epoch, per spec §3. Size/Mtime/Atime/Ctime/TimeWarpSeq are frozen by
// Finish, not by Queue — until then the capture is still "in flight" and
// tracks the live inode.
type CapSnap struct {
	Context *snapcontext.Context
	Follows uint64

	Issued  uint32
	Dirty   int64
	Writing bool

	Size        int64
	Mtime       time.Time
	Atime       time.Time
	Ctime       time.Time
	TimeWarpSeq uint64
}

// Status is the result of Finish: whether the capture is ready to hand to
// the flush list, or is still waiting on writeback to drain its dirty
// pages.
type Status int

const (
	Flushable Status = iota
	NotYetFlushable
)

// InodeSnapshot is the metadata Finish freezes onto a CapSnap.
type InodeSnapshot struct {
	Size        int64
	Mtime       time.Time
	Atime       time.Time
	Ctime       time.Time
	TimeWarpSeq uint64
}

// Inode is everything capsnap needs from the client's inode cache (an
// out-of-scope external collaborator per spec §1). The concrete
// implementation lives in internal/inode; capsnap depends only on this
// interface so it never needs to import the inode cache.
type Inode interface {
	Lock()
	Unlock()

	Ino() uint64

	// Grab/Release model the igrab/iput reference pair §4.5 calls for
	// around a pending capture.
	Grab()
	Release()

	CapsIssued() uint32
	HasWriteCapInUse() bool

	// TakeWritebackHead reads and resets the inode's head dirty-page
	// counter, transferring it to the caller.
	TakeWritebackHead() int64

	Snapshot() InodeSnapshot

	PendingCapSnap() bool
	SetPendingCapSnap(bool)

	AppendCapSnap(*CapSnap)
	CapSnaps() []*CapSnap
}
