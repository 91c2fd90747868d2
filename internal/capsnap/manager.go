package capsnap

import (
	"github.com/snaprealm/client/internal/logging"
	"github.com/snaprealm/client/internal/snapcontext"
)

// Session is the external MDS session collaborator's flush operation: ship
// every pending cap_snap currently queued on ino to its MDS.
type Session interface {
	FlushCapSnaps(ino Inode, snaps []*CapSnap) error
}

// SessionLocator resolves an MDS id to a session handle. Absence of a
// session is the MissingSession error kind from §7: the caller drops the
// batch for that inode and logs, it is not fatal to the driver pass.
type SessionLocator interface {
	Session(mdsID uint64) (Session, bool)
}

// Manager owns the flush list and drives the cap_snap lifecycle described
// in §4.5. It holds no reference to the realm graph; queue-cap-snap callers
// must already hold the realm graph's read lock per §5 before calling Queue,
// and must not hold the inode's own lock: Queue takes it itself.
type Manager struct {
	flushList *FlushList
	log       logging.Logger
}

// NewManager returns a Manager with an empty flush list.
func NewManager(log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop{}
	}
	return &Manager{flushList: newFlushList(), log: log}
}

// FlushList exposes the manager's flush list, mainly for tests; FlushDriver
// reads the list directly.
func (m *Manager) FlushList() *FlushList { return m.flushList }

// Queue implements §4.5 queue-cap-snap. ctx is the snap context the capture
// should be attached to — callers pass the realm's cached context as it
// stands before any pending realm mutation, so writes in flight are
// captured against the context they actually observed.
func (m *Manager) Queue(ino Inode, ctx *snapcontext.Context) {
	cs := &CapSnap{
		Context: ctx.Get(),
		Follows: ctx.Seq() - 1,
	}

	ino.Lock()
	if ino.PendingCapSnap() {
		ino.Unlock()
		cs.Context.Put()
		m.log.Debug(logging.Event{
			Message:  "cap_snap already pending, discarding new allocation",
			Metadata: map[string]any{"ino": ino.Ino()},
		})
		return
	}

	ino.Grab()
	cs.Issued = ino.CapsIssued()
	cs.Dirty = ino.TakeWritebackHead()
	ino.SetPendingCapSnap(true)
	ino.AppendCapSnap(cs)

	writing := ino.HasWriteCapInUse()
	cs.Writing = writing
	ino.Unlock()

	m.log.Debug(logging.Event{
		Message: "queued cap_snap",
		Metadata: map[string]any{
			"ino": ino.Ino(), "seq": ctx.Seq(), "follows": cs.Follows, "writing": writing,
		},
	})

	if !writing {
		m.Finish(ino, cs)
	}
}

// Finish implements §4.5 finish-cap-snap: freeze metadata from the live
// inode and either push the capture onto the flush list or leave it on the
// inode's cap_snap list awaiting writeback completion.
func (m *Manager) Finish(ino Inode, cs *CapSnap) Status {
	if cs.Writing {
		panic("capsnap: Finish called while a writer is still pending")
	}

	snap := ino.Snapshot()
	cs.Size = snap.Size
	cs.Mtime = snap.Mtime
	cs.Atime = snap.Atime
	cs.Ctime = snap.Ctime
	cs.TimeWarpSeq = snap.TimeWarpSeq

	if cs.Dirty > 0 {
		return NotYetFlushable
	}

	ino.SetPendingCapSnap(false)
	m.flushList.Push(ino)
	return Flushable
}

// WritebackComplete is called by the writeback path (outside this
// package's scope, but its effect is ours to apply) when an inode's dirty
// page count for a given cap_snap drops to zero. It re-runs the flushable
// check and pushes to the flush list if the capture is now ready.
func (m *Manager) WritebackComplete(ino Inode, cs *CapSnap) Status {
	if cs.Dirty > 0 {
		return NotYetFlushable
	}
	ino.SetPendingCapSnap(false)
	m.flushList.Push(ino)
	return Flushable
}

// FlushDriver implements §4.5's flush-snaps driver: pop inodes one at a
// time and flush their pending cap_snaps, reusing one MDS session handle
// across the loop while the resolved MDS id doesn't change. It holds no
// graph lock; callers must not call this while holding the realm graph
// lock.
func (m *Manager) FlushDriver(locator SessionLocator, mdsOf func(Inode) uint64) {
	var (
		curID   uint64
		cur     Session
		haveCur bool
	)

	for {
		ino, ok := m.flushList.Pop()
		if !ok {
			return
		}

		id := mdsOf(ino)
		if !haveCur || id != curID {
			sess, ok := locator.Session(id)
			if !ok {
				m.log.Warn(logging.Event{
					Message:  "no session for mds, dropping flush batch",
					Metadata: map[string]any{"ino": ino.Ino(), "mds": id},
				})
				continue
			}
			cur, curID, haveCur = sess, id, true
		}

		if err := cur.FlushCapSnaps(ino, ino.CapSnaps()); err != nil {
			m.log.Warn(logging.Event{
				Message:  "flush cap_snaps failed",
				Metadata: map[string]any{"ino": ino.Ino(), "mds": id, "error": err.Error()},
			})
		}
	}
}
