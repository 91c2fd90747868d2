// Package snapcontext implements the immutable, refcounted snap context
// attached to every outgoing write (component C1 of the snapshot realm
// engine).
package snapcontext

import (
	"sort"
	"sync/atomic"
)

// Context is the set of snapshot ids an outgoing write must carry, plus the
// sequence number it was built at. It is immutable after New returns; the
// only mutable state is the refcount.
//
// Snaps is always sorted descending (newest first) — downstream code relies
// on Snaps()[0] being the newest snapshot.
type Context struct {
	seq   uint64
	snaps []uint64
	nref  int32
}

// New builds a Context from an unsorted set of snapshot ids, sorting a copy
// of them descending and taking the first reference.
func New(seq uint64, snaps []uint64) *Context {
	c := &Context{
		seq:   seq,
		snaps: append([]uint64(nil), snaps...),
		nref:  1,
	}
	sort.Slice(c.snaps, func(i, j int) bool { return c.snaps[i] > c.snaps[j] })
	return c
}

// Seq returns the sequence number this context was built at.
func (c *Context) Seq() uint64 { return c.seq }

// Snaps returns the descending-sorted snapshot ids. Callers must not mutate
// the returned slice.
func (c *Context) Snaps() []uint64 { return c.snaps }

// Equal reports whether c and other carry the same seq and snap set. The
// engine never interns contexts, so equal contexts may still be distinct
// values.
func (c *Context) Equal(other *Context) bool {
	if c == other {
		return true
	}
	if other == nil || c.seq != other.seq || len(c.snaps) != len(other.snaps) {
		return false
	}
	for i, s := range c.snaps {
		if other.snaps[i] != s {
			return false
		}
	}
	return true
}

// Get takes a reference to c, returning c so callers can chain it at the
// point of storage.
func (c *Context) Get() *Context {
	atomic.AddInt32(&c.nref, 1)
	return c
}

// Put releases a reference to c. c must not be used after its last
// reference is released.
func (c *Context) Put() {
	if atomic.AddInt32(&c.nref, -1) < 0 {
		panic("snapcontext: Put called more times than Get")
	}
}

// Refs reports the current refcount, for tests and invariant checks.
func (c *Context) Refs() int32 { return atomic.LoadInt32(&c.nref) }
