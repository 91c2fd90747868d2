package inode

import "sync"

// NoSnap is the sentinel "live" snapshot id used when looking up the
// current, unsnapshotted view of an inode (spec §6's inode_lookup(ino,
// snap=NOSNAP)).
const NoSnap uint64 = ^uint64(0)

// Cache is the client's inode cache: the engine's only way to go from an
// inode number to a live *Inode. The real cache (page cache, dentries,
// on-disk backing) lives outside this module's scope; this interface is
// the whole of what the engine consumes from it.
type Cache interface {
	Lookup(ino uint64, snap uint64) (*Inode, bool)
}

// MemCache is an in-memory Cache, standing in for the real inode cache in
// tests and in the demo command.
type MemCache struct {
	mu     sync.RWMutex
	inodes map[uint64]*Inode
}

func NewMemCache() *MemCache {
	return &MemCache{inodes: make(map[uint64]*Inode)}
}

func (c *MemCache) Lookup(ino uint64, snap uint64) (*Inode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.inodes[ino]
	return i, ok
}

// Add inserts ino into the cache, for tests and fixture setup.
func (c *MemCache) Add(i *Inode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inodes[i.Ino()] = i
}

// Remove evicts ino from the cache.
func (c *MemCache) Remove(ino uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inodes, ino)
}
