package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/advisorhq/advisor-backend/internal/config"
	db "github.com/advisorhq/advisor-backend/internal/core/database"
	syncengine "github.com/advisorhq/advisor-backend/internal/sync"
)

const connectivityProbe = 15 * time.Second

// The agent keeps a local snapshot of one user's data reconciled against the
// backend, surviving restarts and network outages via the persisted queue.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()
	userID := os.Getenv("SYNC_USER_ID")
	if userID == "" {
		log.Fatal("SYNC_USER_ID not set")
	}

	dbClient, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer dbClient.Close()

	store, err := syncengine.NewLocalStore(cfg.SyncStatePath)
	if err != nil {
		log.Fatalf("local state load failed: %v", err)
	}
	defer store.Close()

	remote := syncengine.NewStoreAdapter(dbClient, userID)
	engine := syncengine.NewEngine(store, remote, syncengine.EngineConfig{
		UserID:       userID,
		CloudEnabled: true,
		QueueLimit:   cfg.SyncQueueLimit,
		Intervals: map[syncengine.Category]time.Duration{
			syncengine.CategoryConversations: cfg.ConversationsSync,
			syncengine.CategoryDocuments:     cfg.DocumentsSync,
			syncengine.CategorySettings:      cfg.SettingsSync,
		},
	})

	go probeConnectivity(ctx, engine, remote)
	log.Printf("sync agent running for user %s, state at %s", userID, cfg.SyncStatePath)
	engine.Run(ctx)

	log.Println("sync agent shutting down")
}

// probeConnectivity pings the backend and flips the engine's online flag.
// Coming back online triggers an immediate full sync inside the engine.
func probeConnectivity(ctx context.Context, engine *syncengine.Engine, remote syncengine.RemoteStore) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		engine.SetOnline(ctx, remote.Ping(probeCtx) == nil)
	}

	probe()
	ticker := time.NewTicker(connectivityProbe)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
