// Package realm implements the snapshot realm registry and parent/child
// graph (components C2 and C3): a refcounted graph of realms whose parent
// pointers the MDS may rewrite arbitrarily, plus the keyed registry that
// owns realm allocation and deletion.
package realm

import "github.com/snaprealm/client/internal/snapcontext"

// Realm is a subtree of the namespace sharing a snapshot set. Every mutable
// field is protected by the Registry's graph lock (see Registry); Realm
// itself carries no lock of its own.
type Realm struct {
	Ino uint64

	Seq     uint64
	Created uint64

	ParentIno   uint64
	Parent      *Realm
	ParentSince uint64

	// Snaps created directly on this realm, and snaps inherited from
	// earlier parents during the intervals they were parent.
	Snaps            []uint64
	PriorParentSnaps []uint64

	Children       map[uint64]*Realm
	InodesWithCaps map[uint64]struct{}

	CachedContext *snapcontext.Context

	nref int32
}

func newRealm(ino uint64) *Realm {
	return &Realm{
		Ino:            ino,
		Children:       make(map[uint64]*Realm),
		InodesWithCaps: make(map[uint64]struct{}),
	}
}

// InvalidateContext drops the cached context without rebuilding it. Per
// invariant 3, a nil CachedContext is always tolerated and triggers a
// rebuild on next touch.
func (r *Realm) InvalidateContext() {
	if r.CachedContext != nil {
		r.CachedContext.Put()
		r.CachedContext = nil
	}
}

// SetCachedContext installs c as r's cached context, releasing whatever
// context was previously cached.
func (r *Realm) SetCachedContext(c *snapcontext.Context) {
	if r.CachedContext != nil {
		r.CachedContext.Put()
	}
	r.CachedContext = c
}
