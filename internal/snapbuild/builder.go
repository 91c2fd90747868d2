// Package snapbuild implements the context builder (component C4): it
// derives a realm's snap context from its own snaps plus its parent's
// context, and rebuilds affected subtrees top-down.
package snapbuild

import (
	"github.com/snaprealm/client/internal/realm"
	"github.com/snaprealm/client/internal/snapcontext"
)

// BuildContext implements §4.3. It must be called with the realm graph's
// write lock held, since it reads and mutates r and (recursively) r.Parent.
//
// If r's cached context is already valid for r's and its parent's current
// seq, BuildContext returns without doing anything — callers do not need to
// check validity themselves.
func BuildContext(r *realm.Realm) error {
	if r.Parent != nil && r.Parent.CachedContext == nil {
		if err := BuildContext(r.Parent); err != nil {
			return err
		}
	}

	if cacheValid(r) {
		return nil
	}

	size := len(r.Snaps) + len(r.PriorParentSnaps)
	var parentSnaps []uint64
	var parentSeq uint64
	if r.Parent != nil && r.Parent.CachedContext != nil {
		parentSnaps = r.Parent.CachedContext.Snaps()
		parentSeq = r.Parent.CachedContext.Seq()
		size += len(parentSnaps)
	}

	snaps := make([]uint64, 0, size)
	for _, s := range parentSnaps {
		if s >= r.ParentSince {
			snaps = append(snaps, s)
		}
	}

	seq := r.Seq
	if parentSeq > seq {
		seq = parentSeq
	}

	snaps = append(snaps, r.Snaps...)
	snaps = append(snaps, r.PriorParentSnaps...)

	next := snapcontext.New(seq, snaps)
	r.SetCachedContext(next)
	return nil
}

// cacheValid implements the idempotence check in §4.3 step 2: the cached
// context is still usable when it is at least as new as r's own seq and at
// least as new as the parent's cached context (if any).
func cacheValid(r *realm.Realm) bool {
	if r.CachedContext == nil {
		return false
	}
	if r.CachedContext.Seq() < r.Seq {
		return false
	}
	if r.Parent != nil && r.Parent.CachedContext != nil && r.CachedContext.Seq() < r.Parent.CachedContext.Seq() {
		return false
	}
	return true
}

// RebuildSubtree rebuilds r's context, then recurses into every child.
// Top-down traversal is correct under invariant 3: children always observe
// an up-to-date parent context by the time they are rebuilt. Must be called
// with the write lock held.
func RebuildSubtree(r *realm.Realm) error {
	if err := BuildContext(r); err != nil {
		return err
	}
	for _, c := range r.Children {
		if err := RebuildSubtree(c); err != nil {
			return err
		}
	}
	return nil
}
