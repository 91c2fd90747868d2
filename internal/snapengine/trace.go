package snapengine

import (
	"github.com/snaprealm/client/internal/inode"
	"github.com/snaprealm/client/internal/logging"
	"github.com/snaprealm/client/internal/realm"
	"github.com/snaprealm/client/internal/snapbuild"
	"github.com/snaprealm/client/internal/snapwire"
)

// updateSnapTrace implements §4.4's update-snap-trace, taking the registry
// write lock itself. Used when a trace arrives on its own (OpUpdate/
// OpCreate/OpDestroy), with no split in progress.
func (e *Engine) updateSnapTrace(op snapwire.Opcode, records []snapwire.Record) (*realm.Realm, error) {
	e.registry.Lock()
	defer e.registry.Unlock()
	return e.updateSnapTraceLocked(op, records)
}

// updateSnapTraceLocked is updateSnapTrace's body, requiring the registry
// write lock already held. handleSplit calls this directly so its own lock
// spans the split's detach/reattach steps and the trace application as one
// continuous critical section — mirroring how the original implementation
// holds its single snap realm lock across the whole of ceph_handle_snap,
// never dropping it between a split's reattach and the trace it carries.
//
// records must be ordered deepest-first, ending at the root of the affected
// subtree — the wire format in §6 guarantees this, and the open question in
// SPEC_FULL.md §14(a) documents that the caller relies on it rather than
// re-verifying it.
func (e *Engine) updateSnapTraceLocked(op snapwire.Opcode, records []snapwire.Record) (*realm.Realm, error) {
	var first, last *realm.Realm
	invalidate := false

	for _, rec := range records {
		r := e.registry.GetOrCreate(rec.Ino)
		if first == nil {
			first = r
			e.registry.AddRef(r)
		}

		advancing := rec.Seq > r.Seq

		if advancing && op != snapwire.OpDestroy {
			e.queueCapSnapsForRealm(r)
		}

		if e.registry.AdjustParent(r, rec.Parent) {
			invalidate = true
		}

		if advancing {
			r.Seq = rec.Seq
			r.Created = rec.Created
			r.ParentSince = rec.ParentSince
			r.Snaps = rec.Snaps
			r.PriorParentSnaps = rec.PriorParentSnaps
			invalidate = true
		} else if r.CachedContext == nil {
			invalidate = true
		}

		e.registry.Put(r)
		last = r
	}

	if invalidate && last != nil {
		if err := snapbuild.RebuildSubtree(last); err != nil {
			var invalidateAll func(*realm.Realm)
			invalidateAll = func(x *realm.Realm) {
				x.InvalidateContext()
				for _, c := range x.Children {
					invalidateAll(c)
				}
			}
			invalidateAll(last)
			e.log.Error(logging.Event{
				Message:  "rebuild subtree failed, cached contexts left invalidated",
				Metadata: map[string]any{"root_ino": last.Ino, "error": err.Error()},
			})
			return first, err
		}
	}

	return first, nil
}

// queueCapSnapsForRealm enqueues a cap_snap, under r's current cached
// context, for every inode holding an open capability in r. It must run
// before r's own fields are mutated — this ordering is the single most
// important invariant in the design (§9): writes issued before the seq
// bump observe the old context, writes issued after observe the new one.
func (e *Engine) queueCapSnapsForRealm(r *realm.Realm) {
	if r.CachedContext == nil {
		return
	}
	for ino := range r.InodesWithCaps {
		in, ok := e.cache.Lookup(ino, inode.NoSnap)
		if !ok {
			continue
		}
		e.caps.Queue(in, r.CachedContext)
	}
}
