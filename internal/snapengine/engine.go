// Package snapengine is the top-level snapshot realm engine: it ties the
// realm registry/graph (C2, C3), the context builder (C4), the cap_snap
// lifecycle (C6), and the trace/split protocol decoder together into the
// handle_snap / get_context / queue_cap_snap / flush_snaps surface spec §6
// exposes to the rest of the client.
package snapengine

import (
	"github.com/snaprealm/client/internal/capsnap"
	"github.com/snaprealm/client/internal/inode"
	"github.com/snaprealm/client/internal/logging"
	"github.com/snaprealm/client/internal/realm"
	"github.com/snaprealm/client/internal/snapcontext"
	"github.com/snaprealm/client/internal/snapwire"
)

// Engine is the process-wide realm registry and cap_snap manager described
// in spec §9's "global mutable state" note, encapsulated behind an
// explicit value instead of package-level globals.
type Engine struct {
	registry *realm.Registry
	caps     *capsnap.Manager
	cache    inode.Cache
	log      logging.Logger
}

// New builds an engine with an empty realm registry and flush list. cache
// is the client's inode cache (spec's out-of-scope inode_lookup
// collaborator).
func New(cache inode.Cache, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop{}
	}
	return &Engine{
		registry: realm.New(),
		caps:     capsnap.NewManager(log),
		cache:    cache,
		log:      log,
	}
}

// GetRealm looks up a realm by ino and takes a reference on it, per the
// "get_realm" exposed interface. It reports false if no such realm is
// currently registered.
func (e *Engine) GetRealm(ino uint64) (*realm.Realm, bool) {
	e.registry.RLock()
	defer e.registry.RUnlock()
	return e.registry.Get(ino)
}

// PutRealm releases a reference taken by GetRealm or returned by
// HandleSnap.
func (e *Engine) PutRealm(r *realm.Realm) {
	e.registry.Lock()
	defer e.registry.Unlock()
	e.registry.Put(r)
}

// GetContext returns a referenced copy of r's cached snap context, per the
// "get_context" exposed interface. It reports false if r has no context
// built yet — callers should treat that as "rebuild needed" rather than as
// an empty context.
func (e *Engine) GetContext(r *realm.Realm) (*snapcontext.Context, bool) {
	e.registry.RLock()
	defer e.registry.RUnlock()
	if r.CachedContext == nil {
		return nil, false
	}
	return r.CachedContext.Get(), true
}

// QueueCapSnap implements the "queue_cap_snap" exposed interface: it takes
// the realm graph lock in read mode (topology must not change underfoot,
// per §5) before delegating to the cap_snap manager, which itself takes the
// per-inode lock.
func (e *Engine) QueueCapSnap(ino capsnap.Inode, ctx *snapcontext.Context) {
	e.registry.RLock()
	defer e.registry.RUnlock()
	e.caps.Queue(ino, ctx)
}

// FinishCapSnap implements "finish_cap_snap".
func (e *Engine) FinishCapSnap(ino capsnap.Inode, cs *capsnap.CapSnap) capsnap.Status {
	return e.caps.Finish(ino, cs)
}

// FlushSnaps implements "flush_snaps": drains the flush list without
// holding any realm graph lock.
func (e *Engine) FlushSnaps(locator capsnap.SessionLocator, mdsOf func(capsnap.Inode) uint64) {
	e.caps.FlushDriver(locator, mdsOf)
}

// AttachInode associates in with the realm identified by realmIno,
// recording it in that realm's InodesWithCaps set and taking the reference
// the back-pointer holds. This stands in for the capability-acquisition
// codepath (out of scope per spec §1), just enough to populate realm
// membership for tests and the demo command.
func (e *Engine) AttachInode(in *inode.Inode, realmIno uint64) {
	e.registry.Lock()
	defer e.registry.Unlock()

	r := e.registry.GetOrCreate(realmIno)
	in.Lock()
	in.Realm = r
	r.InodesWithCaps[in.Ino()] = struct{}{}
	in.Unlock()
}

// HandleSnap implements "handle_snap": decode and apply one inbound MDS
// snap message. It returns the deepest realm named by the message's trace,
// referenced once for the caller (who must PutRealm it), per §4.4 step 1.
//
// Malformed messages are dropped (nil, ErrMalformed-wrapping error) per
// §7 — callers should log and move on rather than treat this as fatal.
func (e *Engine) HandleSnap(raw []byte) (*realm.Realm, error) {
	msg, err := snapwire.Decode(raw)
	if err != nil {
		e.log.Warn(logging.Event{Message: "dropping malformed snap message", Metadata: map[string]any{"error": err.Error()}})
		return nil, err
	}

	if msg.Op == snapwire.OpSplit {
		return e.handleSplit(msg)
	}
	return e.updateSnapTrace(msg.Op, msg.Trace)
}
