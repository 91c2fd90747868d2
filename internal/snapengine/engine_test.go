package snapengine

import (
	"testing"

	"github.com/snaprealm/client/internal/inode"
	"github.com/snaprealm/client/internal/snapwire"
)

func rebuildMsg(op snapwire.Opcode, records ...snapwire.Record) []byte {
	return (&snapwire.Message{Op: op, Trace: records}).Encode()
}

func TestHandleSnap_SingleRealmTwoSnapshots(t *testing.T) {
	e := New(inode.NewMemCache(), nil)

	raw1 := rebuildMsg(snapwire.OpCreate, snapwire.Record{Ino: 1, Seq: 1, Created: 10, Snaps: []uint64{100}})
	r, err := e.HandleSnap(raw1)
	if err != nil {
		t.Fatalf("HandleSnap: %v", err)
	}
	if r.CachedContext == nil {
		t.Fatal("expected cached context after first snapshot")
	}
	if r.CachedContext.Seq() != 1 {
		t.Errorf("Seq() = %d, want 1", r.CachedContext.Seq())
	}
	e.PutRealm(r)

	raw2 := rebuildMsg(snapwire.OpUpdate, snapwire.Record{Ino: 1, Seq: 2, Created: 10, Snaps: []uint64{100, 200}})
	r2, err := e.HandleSnap(raw2)
	if err != nil {
		t.Fatalf("HandleSnap (second): %v", err)
	}
	defer e.PutRealm(r2)

	if r2.Ino != 1 {
		t.Fatalf("expected the same realm ino, got %d", r2.Ino)
	}
	ctx := r2.CachedContext
	if ctx.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", ctx.Seq())
	}
	snaps := ctx.Snaps()
	if len(snaps) != 2 {
		t.Fatalf("Snaps() = %v, want 2 entries", snaps)
	}
}

func TestHandleSnap_ParentInheritanceWithParentSince(t *testing.T) {
	e := New(inode.NewMemCache(), nil)

	rootMsg := rebuildMsg(snapwire.OpCreate, snapwire.Record{Ino: 1, Seq: 1, Created: 5, Snaps: []uint64{10, 20}})
	r, err := e.HandleSnap(rootMsg)
	if err != nil {
		t.Fatalf("HandleSnap (root): %v", err)
	}
	e.PutRealm(r)

	childMsg := rebuildMsg(snapwire.OpCreate,
		snapwire.Record{Ino: 2, Parent: 1, Seq: 1, Created: 6, ParentSince: 15},
		snapwire.Record{Ino: 1, Seq: 1, Created: 5, Snaps: []uint64{10, 20}},
	)
	child, err := e.HandleSnap(childMsg)
	if err != nil {
		t.Fatalf("HandleSnap (child): %v", err)
	}
	defer e.PutRealm(child)

	if child.Ino != 2 {
		t.Fatalf("expected first realm in trace (ino 2), got %d", child.Ino)
	}
	snaps := child.CachedContext.Snaps()
	// Only the parent's snap >= 15 (20) should be inherited; 10 is filtered.
	if len(snaps) != 1 || snaps[0] != 20 {
		t.Errorf("Snaps() = %v, want [20]", snaps)
	}
}

func TestHandleSnap_RebuildCascadesToChildren(t *testing.T) {
	cache := inode.NewMemCache()
	e := New(cache, nil)

	// Anchor both realms with attached inodes so they outlive the trace
	// handler's own reference and survive to the second message below.
	rootIn := inode.New(101)
	cache.Add(rootIn)
	e.AttachInode(rootIn, 1)
	childIn := inode.New(102)
	cache.Add(childIn)
	e.AttachInode(childIn, 2)

	childMsg := rebuildMsg(snapwire.OpCreate,
		snapwire.Record{Ino: 2, Parent: 1, Seq: 1, Created: 6},
		snapwire.Record{Ino: 1, Seq: 1, Created: 5},
	)
	child, err := e.HandleSnap(childMsg)
	if err != nil {
		t.Fatalf("HandleSnap: %v", err)
	}
	e.PutRealm(child)

	root, ok := e.GetRealm(1)
	if !ok {
		t.Fatal("expected root realm 1 to exist")
	}
	defer e.PutRealm(root)
	if root.CachedContext == nil {
		t.Fatal("expected root to have a cached context built as part of the cascade")
	}

	updateRoot := rebuildMsg(snapwire.OpUpdate, snapwire.Record{Ino: 1, Seq: 2, Created: 5, Snaps: []uint64{99}})
	r2, err := e.HandleSnap(updateRoot)
	if err != nil {
		t.Fatalf("HandleSnap (root update): %v", err)
	}
	defer e.PutRealm(r2)

	child2, ok := e.GetRealm(2)
	if !ok {
		t.Fatal("expected child realm 2 to still exist")
	}
	defer e.PutRealm(child2)

	if child2.CachedContext.Seq() != 2 {
		t.Errorf("child Seq() = %d, want 2 (rebuilt cascade from root)", child2.CachedContext.Seq())
	}
	found99 := false
	for _, s := range child2.CachedContext.Snaps() {
		if s == 99 {
			found99 = true
		}
	}
	if !found99 {
		t.Error("expected child to inherit root's new snap after cascade")
	}
}

func TestHandleSnap_Split(t *testing.T) {
	cache := inode.NewMemCache()
	e := New(cache, nil)

	// Attach the inode first so the realm it anchors survives past the
	// root message's own reference release below, keeping its context.
	in := inode.New(42)
	in.SetCaps(inode.CapRead, 0)
	cache.Add(in)
	e.AttachInode(in, 1)

	rootMsg := rebuildMsg(snapwire.OpCreate, snapwire.Record{Ino: 1, Seq: 1, Created: 5, Snaps: []uint64{10}})
	r, err := e.HandleSnap(rootMsg)
	if err != nil {
		t.Fatalf("HandleSnap (root): %v", err)
	}
	e.PutRealm(r)

	splitMsg := (&snapwire.Message{
		Op:        snapwire.OpSplit,
		Split:     2,
		SplitInos: []uint64{42},
		Trace: []snapwire.Record{
			{Ino: 2, Parent: 1, Seq: 1, Created: 50},
		},
	}).Encode()

	newRealm, err := e.HandleSnap(splitMsg)
	if err != nil {
		t.Fatalf("HandleSnap (split): %v", err)
	}
	defer e.PutRealm(newRealm)

	if newRealm.Ino != 2 {
		t.Fatalf("expected new realm ino 2, got %d", newRealm.Ino)
	}

	in.Lock()
	migratedRealm := in.Realm
	in.Unlock()
	if migratedRealm == nil || migratedRealm.Ino != 2 {
		t.Fatalf("expected inode 42 to migrate to realm 2, got %+v", migratedRealm)
	}

	if _, ok := migratedRealm.InodesWithCaps[42]; !ok {
		t.Error("expected inode 42 registered in new realm's InodesWithCaps")
	}

	// A cap_snap should have been queued against the old realm's context
	// before migration, per the split ordering invariant.
	if len(in.CapSnaps()) == 0 {
		t.Error("expected a cap_snap queued for the migrating inode")
	}
}

func TestHandleSnap_StaleSplitRaceSkipsInode(t *testing.T) {
	cache := inode.NewMemCache()
	e := New(cache, nil)

	// Attach the inode first so the realm it anchors survives past the
	// root message's own reference release below.
	in := inode.New(7)
	cache.Add(in)
	e.AttachInode(in, 1)

	// Root realm already created after the split's claimed creation point.
	rootMsg := rebuildMsg(snapwire.OpCreate, snapwire.Record{Ino: 1, Seq: 1, Created: 100})
	r, err := e.HandleSnap(rootMsg)
	if err != nil {
		t.Fatalf("HandleSnap (root): %v", err)
	}
	e.PutRealm(r)

	splitMsg := (&snapwire.Message{
		Op:        snapwire.OpSplit,
		Split:     2,
		SplitInos: []uint64{7},
		Trace: []snapwire.Record{
			// new realm's created (50) is older than the inode's current
			// realm (100): a stale race the engine must detect and skip.
			{Ino: 2, Parent: 1, Seq: 1, Created: 50},
		},
	}).Encode()

	newRealm, err := e.HandleSnap(splitMsg)
	if err != nil {
		t.Fatalf("HandleSnap (split): %v", err)
	}
	defer e.PutRealm(newRealm)

	in.Lock()
	realmAfter := in.Realm
	in.Unlock()
	if realmAfter == nil || realmAfter.Ino != 1 {
		t.Fatalf("expected inode to remain in realm 1 after a stale race, got %+v", realmAfter)
	}
}

func TestHandleSnap_DestroySuppressesCapSnap(t *testing.T) {
	cache := inode.NewMemCache()
	e := New(cache, nil)

	// Attach the inode before the realm has any cached context, so the
	// create message below is the one that actually builds it.
	in := inode.New(9)
	in.SetCaps(inode.CapRead, 0)
	cache.Add(in)
	e.AttachInode(in, 1)

	createMsg := rebuildMsg(snapwire.OpCreate, snapwire.Record{Ino: 1, Seq: 1, Created: 10, Snaps: []uint64{5}})
	r, err := e.HandleSnap(createMsg)
	if err != nil {
		t.Fatalf("HandleSnap (create): %v", err)
	}
	e.PutRealm(r)
	if len(in.CapSnaps()) != 0 {
		t.Fatalf("expected no cap_snap queued by the first create (no context existed yet), got %d", len(in.CapSnaps()))
	}

	// A plain update, now that a context exists, must queue a cap_snap for
	// the attached inode.
	updateMsg := rebuildMsg(snapwire.OpUpdate, snapwire.Record{Ino: 1, Seq: 2, Created: 10, Snaps: []uint64{5, 6}})
	r2, err := e.HandleSnap(updateMsg)
	if err != nil {
		t.Fatalf("HandleSnap (update): %v", err)
	}
	e.PutRealm(r2)
	if len(in.CapSnaps()) != 1 {
		t.Fatalf("expected exactly one cap_snap queued by the update, got %d", len(in.CapSnaps()))
	}

	// A destroy, even though it also advances seq, must not queue another.
	destroyMsg := rebuildMsg(snapwire.OpDestroy, snapwire.Record{Ino: 1, Seq: 3, Created: 10})
	r3, err := e.HandleSnap(destroyMsg)
	if err != nil {
		t.Fatalf("HandleSnap (destroy): %v", err)
	}
	defer e.PutRealm(r3)

	if len(in.CapSnaps()) != 1 {
		t.Errorf("expected destroy to queue no additional cap_snap, got %d total", len(in.CapSnaps()))
	}
}
