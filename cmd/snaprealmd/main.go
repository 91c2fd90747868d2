// Command snaprealmd is a demo wiring of the snapshot realm engine: a
// messenger that receives snap messages, an etcd-backed MDS locator, the
// engine itself, and a periodic flush driver pass.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snaprealm/client/internal/capsnap"
	"github.com/snaprealm/client/internal/config"
	"github.com/snaprealm/client/internal/inode"
	"github.com/snaprealm/client/internal/logging"
	"github.com/snaprealm/client/internal/mdslocator"
	"github.com/snaprealm/client/internal/snapengine"
	"github.com/snaprealm/client/internal/transport"
)

func main() {
	configPath := flag.String("config", "./snaprealmd.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logging.NewZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer zl.Sync()

	cache := inode.NewMemCache()
	engine := snapengine.New(cache, zl)

	msgr := transport.NewMessenger(cfg.ListenAddr, zl)
	if err := msgr.Start(func(payload []byte) error {
		r, err := engine.HandleSnap(payload)
		if err != nil {
			return err
		}
		if r != nil {
			engine.PutRealm(r)
		}
		return nil
	}); err != nil {
		log.Fatalf("start messenger: %v", err)
	}
	defer msgr.Stop()

	locator, err := mdslocator.New(cfg.EtcdEndpoints, msgr, zl)
	if err != nil {
		log.Fatalf("connect mds locator: %v", err)
	}
	defer locator.Close()

	ctx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()
	go runSyncLoop(ctx, locator, zl)

	go runFlushLoop(ctx, engine, locator)

	zl.Info(logging.Event{Message: "snaprealmd started", Metadata: map[string]any{"addr": cfg.ListenAddr}})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	zl.Info(logging.Event{Message: "snaprealmd shutting down"})
}

func runSyncLoop(ctx context.Context, locator *mdslocator.Locator, log logging.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := locator.Sync(ctx); err != nil {
				log.Warn(logging.Event{Message: "mds locator sync failed", Metadata: map[string]any{"error": err.Error()}})
			}
		}
	}
}

func runFlushLoop(ctx context.Context, engine *snapengine.Engine, locator *mdslocator.Locator) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	mdsOf := func(in capsnap.Inode) uint64 {
		// A single-MDS deployment is assumed for the demo command; a
		// real client would derive this from the inode's realm's MDS
		// assignment, which is out of this engine's scope.
		return 1
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.FlushSnaps(locator, mdsOf)
		}
	}
}
