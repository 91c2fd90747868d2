package snapengine

import (
	"github.com/snaprealm/client/internal/inode"
	"github.com/snaprealm/client/internal/logging"
	"github.com/snaprealm/client/internal/realm"
	"github.com/snaprealm/client/internal/snapwire"
)

// handleSplit implements §4.4's split handling. The ordering across steps
// 3 and 6 is the crucial contract: cap_snaps for affected inodes are
// emitted under the *old* realm's context, then inodes migrate, then the
// new realm hierarchy is applied by the normal trace processing. The
// registry write lock is held for the entire sequence, never dropped
// between detach and reattach, so no concurrent HandleSnap call can observe
// the graph mid-split.
func (e *Engine) handleSplit(msg *snapwire.Message) (*realm.Realm, error) {
	e.registry.Lock()
	defer e.registry.Unlock()

	newRealm := e.registry.GetOrCreate(msg.Split)

	// Peek the first (deepest) trace record without consuming it, per
	// §4.4 step 2 — that record belongs to the new realm itself.
	var newCreated uint64
	if len(msg.Trace) > 0 {
		newCreated = msg.Trace[0].Created
	}

	type migrated struct {
		in       *inode.Inode
		oldRealm *realm.Realm
	}
	var toMigrate []migrated

	for _, ino := range msg.SplitInos {
		in, ok := e.cache.Lookup(ino, inode.NoSnap)
		if !ok {
			continue
		}

		in.Lock()
		oldRealm := in.Realm
		if oldRealm == nil {
			// No prior realm membership to migrate (the capability
			// acquisition path never attached this inode to a realm).
			in.Unlock()
			continue
		}
		if oldRealm.Created > newCreated {
			in.Unlock()
			e.log.Debug(logging.Event{
				Message:  "stale split race, leaving inode in its current realm",
				Metadata: map[string]any{"ino": ino, "old_created": oldRealm.Created, "new_created": newCreated},
			})
			continue
		}
		in.Unlock()

		// InodesWithCaps is realm-graph state, guarded by the registry
		// lock already held here, not the inode lock. Queue takes the
		// inode lock itself, so it must run after in.Unlock() above.
		delete(oldRealm.InodesWithCaps, ino)
		if oldRealm.CachedContext != nil {
			e.caps.Queue(in, oldRealm.CachedContext)
		}

		toMigrate = append(toMigrate, migrated{in: in, oldRealm: oldRealm})
	}

	for _, childIno := range msg.SplitRealms {
		child := e.registry.GetOrCreate(childIno)
		e.registry.AdjustParent(child, newRealm.Ino)
		e.registry.Put(child)
	}

	first, err := e.updateSnapTraceLocked(msg.Op, msg.Trace)

	for _, m := range toMigrate {
		e.registry.Put(m.oldRealm)
		m.in.Lock()
		newRealm.InodesWithCaps[m.in.Ino()] = struct{}{}
		m.in.Realm = newRealm
		m.in.Unlock()
		e.registry.AddRef(newRealm)
	}
	e.registry.Put(newRealm)

	return first, err
}
