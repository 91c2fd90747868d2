// Package inode is the stub for the client's inode cache: an external
// collaborator the snapshot realm engine consumes from (identity lookup,
// capability masks, dirty-page counters) but does not own. Only the
// surface the engine actually touches is modeled here.
package inode

import (
	"sync"
	"time"

	"github.com/snaprealm/client/internal/capsnap"
	"github.com/snaprealm/client/internal/realm"
)

// CapMask is a capability bitmask, matching the wire-level cap bits the
// MDS and client exchange (not modeled further here — out of scope).
type CapMask uint32

const (
	CapRead CapMask = 1 << iota
	CapWrite
	CapExcl
)

// Inode is a minimal client-side inode: just the fields the snapshot realm
// engine reads or mutates. Everything else (page cache, dentry links,
// on-disk representation) is out of scope.
type Inode struct {
	mu sync.Mutex

	ino uint64

	size  int64
	mtime time.Time
	atime time.Time
	ctime time.Time

	timeWarpSeq uint64

	capsIssued CapMask
	capsUsed   CapMask

	wrbufferRefHead int64

	pendingCapSnap bool
	capSnaps       []*capsnap.CapSnap

	// Realm is the inode's current realm back-pointer. Protected by the
	// inode's own lock, per spec §5.
	Realm *realm.Realm

	refs int32
}

// New returns an inode with no capabilities and no dirty pages.
func New(ino uint64) *Inode {
	return &Inode{ino: ino}
}

func (i *Inode) Lock()   { i.mu.Lock() }
func (i *Inode) Unlock() { i.mu.Unlock() }

func (i *Inode) Ino() uint64 { return i.ino }

func (i *Inode) Grab()    { i.refs++ }
func (i *Inode) Release() { i.refs-- }

// Refs reports the current reference count, for tests.
func (i *Inode) Refs() int32 { return i.refs }

func (i *Inode) CapsIssued() uint32  { return uint32(i.capsIssued) }
func (i *Inode) CapsUsed() CapMask   { return i.capsUsed }

// SetCaps is a test/fixture helper; production code mutates these through
// the (out-of-scope) capability acquisition path.
func (i *Inode) SetCaps(issued, used CapMask) {
	i.capsIssued = issued
	i.capsUsed = used
}

func (i *Inode) HasWriteCapInUse() bool {
	return i.capsUsed&CapWrite != 0
}

// TakeWritebackHead reads and resets the head dirty-page counter,
// transferring ownership of the count to the caller (a CapSnap).
func (i *Inode) TakeWritebackHead() int64 {
	n := i.wrbufferRefHead
	i.wrbufferRefHead = 0
	return n
}

// AddDirty is a test/fixture helper standing in for the page-cache
// writeback path incrementing the head counter on a real write.
func (i *Inode) AddDirty(n int64) { i.wrbufferRefHead += n }

func (i *Inode) Snapshot() capsnap.InodeSnapshot {
	return capsnap.InodeSnapshot{
		Size:        i.size,
		Mtime:       i.mtime,
		Atime:       i.atime,
		Ctime:       i.ctime,
		TimeWarpSeq: i.timeWarpSeq,
	}
}

// SetMetadata is a test/fixture helper for populating the fields Snapshot
// captures.
func (i *Inode) SetMetadata(size int64, mtime, atime, ctime time.Time, timeWarpSeq uint64) {
	i.size = size
	i.mtime = mtime
	i.atime = atime
	i.ctime = ctime
	i.timeWarpSeq = timeWarpSeq
}

func (i *Inode) PendingCapSnap() bool       { return i.pendingCapSnap }
func (i *Inode) SetPendingCapSnap(v bool)   { i.pendingCapSnap = v }
func (i *Inode) AppendCapSnap(cs *capsnap.CapSnap) {
	i.capSnaps = append(i.capSnaps, cs)
}
func (i *Inode) CapSnaps() []*capsnap.CapSnap { return i.capSnaps }

// RemoveCapSnap drops cs from the inode's cap_snap list once its flush has
// been acknowledged. Flush acknowledgement itself is outside this spec.
func (i *Inode) RemoveCapSnap(cs *capsnap.CapSnap) {
	for idx, c := range i.capSnaps {
		if c == cs {
			i.capSnaps = append(i.capSnaps[:idx], i.capSnaps[idx+1:]...)
			return
		}
	}
}
