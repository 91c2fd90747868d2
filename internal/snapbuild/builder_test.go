package snapbuild

import (
	"testing"

	"github.com/snaprealm/client/internal/realm"
)

func newTestRealm(ino uint64) *realm.Realm {
	g := realm.New()
	g.Lock()
	r := g.GetOrCreate(ino)
	g.Unlock()
	return r
}

func TestBuildContext_SingleRealmOwnSnaps(t *testing.T) {
	r := newTestRealm(1)
	r.Seq = 2
	r.Snaps = []uint64{10, 20}

	if err := BuildContext(r); err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	ctx := r.CachedContext
	if ctx == nil {
		t.Fatal("expected CachedContext to be set")
	}
	if ctx.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", ctx.Seq())
	}
	want := []uint64{20, 10}
	got := ctx.Snaps()
	if len(got) != len(want) {
		t.Fatalf("Snaps() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Snaps()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBuildContext_InheritsFilteredParentSnaps(t *testing.T) {
	g := realm.New()
	g.Lock()
	parent := g.GetOrCreate(1)
	child := g.GetOrCreate(2)
	g.AdjustParent(child, 1)
	g.Unlock()

	parent.Seq = 3
	parent.Snaps = []uint64{5, 15, 25}

	child.Seq = 1
	child.ParentSince = 10
	child.Snaps = []uint64{30}

	if err := BuildContext(child); err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	ctx := child.CachedContext
	if ctx == nil {
		t.Fatal("expected CachedContext to be set")
	}
	// Only parent snaps >= ParentSince (10) are inherited: 15 and 25, plus
	// the child's own snap 30.
	want := map[uint64]bool{30: true, 25: true, 15: true}
	got := ctx.Snaps()
	if len(got) != len(want) {
		t.Fatalf("Snaps() = %v, want snaps matching %v", got, want)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected snap %d in child context", s)
		}
	}
	// seq must be raised to the parent's, since it's higher.
	if ctx.Seq() != 3 {
		t.Errorf("Seq() = %d, want 3 (raised to parent's)", ctx.Seq())
	}
}

func TestBuildContext_CacheValidSkipsRebuild(t *testing.T) {
	r := newTestRealm(1)
	r.Seq = 2
	r.Snaps = []uint64{10}

	if err := BuildContext(r); err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	first := r.CachedContext

	// Mutating Snaps after the cache was built must not matter: cacheValid
	// only consults Seq, not Snaps, so an unchanged Seq means the existing
	// cache is reused verbatim.
	r.Snaps = append(r.Snaps, 999)
	if err := BuildContext(r); err != nil {
		t.Fatalf("BuildContext (second call): %v", err)
	}

	if r.CachedContext != first {
		t.Error("expected BuildContext to be a no-op when cache is already valid")
	}
}

func TestRebuildSubtree_CascadesToChildren(t *testing.T) {
	g := realm.New()
	g.Lock()
	root := g.GetOrCreate(1)
	child := g.GetOrCreate(2)
	grandchild := g.GetOrCreate(3)
	g.AdjustParent(child, 1)
	g.AdjustParent(grandchild, 2)
	g.Unlock()

	root.Seq = 5
	root.Snaps = []uint64{100}
	child.ParentSince = 0
	grandchild.ParentSince = 0

	if err := RebuildSubtree(root); err != nil {
		t.Fatalf("RebuildSubtree: %v", err)
	}

	if root.CachedContext == nil || child.CachedContext == nil || grandchild.CachedContext == nil {
		t.Fatal("expected every realm in the subtree to have a cached context")
	}
	if child.CachedContext.Seq() != 5 {
		t.Errorf("child Seq() = %d, want 5 (inherited from root)", child.CachedContext.Seq())
	}
	if grandchild.CachedContext.Seq() != 5 {
		t.Errorf("grandchild Seq() = %d, want 5 (inherited transitively)", grandchild.CachedContext.Seq())
	}
	found100 := false
	for _, s := range grandchild.CachedContext.Snaps() {
		if s == 100 {
			found100 = true
		}
	}
	if !found100 {
		t.Error("expected grandchild to inherit root's snap transitively")
	}
}
