// Package mdslocator resolves an MDS id to a dialable session, the
// "get_mds_session" external collaborator from spec §6. Endpoints are
// discovered from etcd: a read-mostly lookup of MDS addresses rather than
// full node liveness/lease tracking.
package mdslocator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snaprealm/client/internal/capsnap"
	"github.com/snaprealm/client/internal/logging"
	"github.com/snaprealm/client/internal/transport"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	dialTimeout = 5 * time.Second
	prefixMDS   = "/snaprealm/mds/"
)

// Locator resolves MDS ids to Sessions backed by a shared Messenger,
// caching addresses read from etcd.
type Locator struct {
	client *clientv3.Client
	msgr   *transport.Messenger
	log    logging.Logger

	mu        sync.RWMutex
	addrByMDS map[uint64]string
}

// New connects to the given etcd endpoints and returns a Locator that
// resolves MDS sessions over msgr.
func New(endpoints []string, msgr *transport.Messenger, log logging.Logger) (*Locator, error) {
	if log == nil {
		log = logging.Nop{}
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mdslocator: connect to etcd: %w", err)
	}

	return &Locator{
		client:    cli,
		msgr:      msgr,
		log:       log,
		addrByMDS: make(map[uint64]string),
	}, nil
}

// Close releases the etcd client.
func (l *Locator) Close() error { return l.client.Close() }

// Sync refreshes the MDS id -> address map from etcd. Callers run this
// periodically or on a watch event; the engine itself never blocks on it.
func (l *Locator) Sync(ctx context.Context) error {
	resp, err := l.client.Get(ctx, prefixMDS, clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("mdslocator: sync: %w", err)
	}

	fresh := make(map[uint64]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id := mdsIDFromKey(string(kv.Key))
		fresh[id] = string(kv.Value)
	}

	l.mu.Lock()
	l.addrByMDS = fresh
	l.mu.Unlock()
	return nil
}

func mdsIDFromKey(key string) uint64 {
	suffix := key[len(prefixMDS):]
	var id uint64
	if n, err := fmt.Sscanf(suffix, "%016x", &id); err != nil || n != 1 {
		return 0
	}
	return id
}

// mdsKey builds the etcd key for an MDS id, using a fixed-width hex
// encoding so a range Get over the prefix sorts by id.
func mdsKey(id uint64) string {
	return fmt.Sprintf("%s%016x", prefixMDS, id)
}

// Register publishes this client's knowledge of an MDS's address, used by
// the demo command and tests to seed the locator without a real MDS
// cluster.
func (l *Locator) Register(ctx context.Context, mdsID uint64, addr string) error {
	if _, err := l.client.Put(ctx, mdsKey(mdsID), addr); err != nil {
		return fmt.Errorf("mdslocator: register mds %d: %w", mdsID, err)
	}
	l.mu.Lock()
	l.addrByMDS[mdsID] = addr
	l.mu.Unlock()
	return nil
}

// Session implements capsnap.SessionLocator.
func (l *Locator) Session(mdsID uint64) (capsnap.Session, bool) {
	l.mu.RLock()
	addr, ok := l.addrByMDS[mdsID]
	l.mu.RUnlock()
	if !ok {
		l.log.Warn(logging.Event{Message: "no known address for mds", Metadata: map[string]any{"mds": mdsID}})
		return nil, false
	}
	return &session{msgr: l.msgr, addr: addr}, true
}

// session is a capsnap.Session backed by one MDS's address.
type session struct {
	msgr *transport.Messenger
	addr string
}

// FlushCapSnaps serializes ino's pending cap_snaps and delivers them over
// the messenger. Serialization of the cap_snap batch itself is a transport
// concern the out-of-scope MDS session layer would normally own in full;
// here it is reduced to the fields spec §3 names.
func (s *session) FlushCapSnaps(ino capsnap.Inode, snaps []*capsnap.CapSnap) error {
	payload := encodeCapSnapBatch(ino.Ino(), snaps)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.msgr.Send(ctx, s.addr, "flush_cap_snaps", payload)
}
