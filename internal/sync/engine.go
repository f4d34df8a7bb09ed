package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/advisorhq/advisor-backend/internal/models"
)

const reasonOffline = "Sync not available"

// EngineConfig wires an Engine. Zero intervals disable that category's timer.
type EngineConfig struct {
	UserID       string
	CloudEnabled bool
	QueueLimit   int
	Intervals    map[Category]time.Duration
}

// Engine runs the idle → syncing → idle cycle. A single inProgress guard
// prevents overlapping cycles; it is set before any remote call and cleared
// on every exit path.
type Engine struct {
	store  *LocalStore
	remote RemoteStore
	queue  *OpQueue
	cfg    EngineConfig

	online     atomic.Bool
	inProgress atomic.Bool

	mu         stdsync.Mutex
	lastSyncAt map[Category]time.Time
}

func NewEngine(store *LocalStore, remote RemoteStore, cfg EngineConfig) *Engine {
	e := &Engine{
		store:      store,
		remote:     remote,
		queue:      NewOpQueue(cfg.QueueLimit),
		cfg:        cfg,
		lastSyncAt: map[Category]time.Time{},
	}
	store.View(func(s *LocalState) {
		e.queue.Restore(s.Queue)
		for cat, t := range s.LastSyncAt {
			e.lastSyncAt[cat] = t
		}
	})
	return e
}

// SetOnline updates connectivity. An offline-to-online transition forces an
// immediate full sync.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	was := e.online.Swap(online)
	if online && !was {
		log.Println("[sync] back online, forcing full sync")
		go e.SyncAll(ctx)
	}
}

func (e *Engine) IsOnline() bool { return e.online.Load() }

// Status reports the client-facing view of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	last := make(map[Category]time.Time, len(e.lastSyncAt))
	for cat, t := range e.lastSyncAt {
		last[cat] = t
	}
	e.mu.Unlock()

	return Status{
		IsOnline:          e.online.Load(),
		IsSyncing:         e.inProgress.Load(),
		LastSyncAt:        last,
		PendingOperations: e.queue.Len(),
		CloudEnabled:      e.cfg.CloudEnabled,
	}
}

// Run drives the per-category timers until ctx is cancelled. Conversations
// sync most often, settings least; the intervals come from config.
func (e *Engine) Run(ctx context.Context) {
	var wg stdsync.WaitGroup
	for _, cat := range Categories {
		interval := e.cfg.Intervals[cat]
		if interval <= 0 {
			continue
		}
		wg.Add(1)
		go func(cat Category, interval time.Duration) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					e.syncOne(ctx, cat)
				}
			}
		}(cat, interval)
	}
	wg.Wait()
}

// SyncAll drains the offline queue and reconciles every category. When
// offline or cloud sync is disabled it reports failure without touching the
// queue.
func (e *Engine) SyncAll(ctx context.Context) SyncResult {
	if !e.cfg.CloudEnabled || !e.online.Load() {
		return SyncResult{Success: false, Reason: reasonOffline}
	}
	if !e.inProgress.CompareAndSwap(false, true) {
		return SyncResult{Success: false, Reason: "Sync already in progress"}
	}
	defer e.inProgress.Store(false)

	if err := e.runCycle(ctx, Categories...); err != nil {
		log.Printf("[sync] cycle failed: %v", err)
		return SyncResult{Success: false, Reason: err.Error()}
	}
	return SyncResult{Success: true}
}

// syncOne runs a single-category cycle from a timer tick. Ticks that land
// while another cycle is running are skipped rather than queued.
func (e *Engine) syncOne(ctx context.Context, cat Category) {
	if !e.cfg.CloudEnabled || !e.online.Load() {
		return
	}
	if !e.inProgress.CompareAndSwap(false, true) {
		return
	}
	defer e.inProgress.Store(false)

	if err := e.runCycle(ctx, cat); err != nil {
		log.Printf("[sync] %s cycle failed: %v", cat, err)
	}
}

// runCycle drains the queue, then reconciles the given categories. Panics
// are recovered so a bad cycle cannot wedge the guard.
func (e *Engine) runCycle(ctx context.Context, cats ...Category) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panic: %v", r)
		}
	}()

	e.drainQueue(ctx)

	for _, cat := range cats {
		var catErr error
		switch cat {
		case CategoryConversations:
			catErr = e.syncConversations(ctx)
		case CategoryDocuments:
			catErr = e.syncDocuments(ctx)
		case CategorySettings:
			catErr = e.syncSettings(ctx)
		}
		if catErr != nil {
			return fmt.Errorf("%s: %w", cat, catErr)
		}
		e.markSynced(cat)
	}
	return nil
}

func (e *Engine) markSynced(cat Category) {
	now := time.Now()
	e.mu.Lock()
	e.lastSyncAt[cat] = now
	e.mu.Unlock()
	e.store.Update(func(s *LocalState) {
		s.LastSyncAt[cat] = now
	})
}

func (e *Engine) syncDocuments(ctx context.Context) error {
	remote, err := e.remote.ListDocuments(ctx, e.cfg.UserID)
	if err != nil {
		return fmt.Errorf("list remote documents: %w", err)
	}

	var local map[string]models.Document
	e.store.View(func(s *LocalState) {
		local = make(map[string]models.Document, len(s.Documents))
		for id, d := range s.Documents {
			local[id] = d
		}
	})

	merged, toUpload := MergeDocuments(local, remote)
	for i := range toUpload {
		doc := toUpload[i]
		if err := e.remote.UpsertDocument(ctx, &doc); err != nil {
			log.Printf("[sync] upload document %s failed, queueing: %v", doc.ID, err)
			e.enqueue(OpUpsertDocument, doc)
		}
	}

	e.store.Update(func(s *LocalState) {
		s.Documents = merged
	})
	return nil
}

func (e *Engine) syncConversations(ctx context.Context) error {
	remote, err := e.remote.ListConversations(ctx, e.cfg.UserID)
	if err != nil {
		return fmt.Errorf("list remote conversations: %w", err)
	}

	var local map[string]models.Conversation
	var localMsgs map[string][]models.Message
	e.store.View(func(s *LocalState) {
		local = make(map[string]models.Conversation, len(s.Conversations))
		for id, c := range s.Conversations {
			local[id] = c
		}
		localMsgs = make(map[string][]models.Message, len(s.Messages))
		for id, msgs := range s.Messages {
			localMsgs[id] = append([]models.Message(nil), msgs...)
		}
	})

	merged, toUpload := MergeConversations(local, remote)
	for i := range toUpload {
		conv := toUpload[i]
		if err := e.remote.UpsertConversation(ctx, &conv); err != nil {
			log.Printf("[sync] upload conversation %s failed, queueing: %v", conv.ID, err)
			e.enqueue(OpUpsertConversation, conv)
		}
	}

	// Messages reconcile by presence only: upload what the remote is
	// missing, never rewrite existing content.
	for convID, msgs := range localMsgs {
		if len(msgs) == 0 {
			continue
		}
		remoteMsgs, err := e.remote.ListMessages(ctx, convID)
		if err != nil {
			return fmt.Errorf("list messages for %s: %w", convID, err)
		}
		missing := MissingMessages(msgs, remoteMsgs)
		if len(missing) == 0 {
			continue
		}
		if err := e.remote.InsertMessages(ctx, missing); err != nil {
			log.Printf("[sync] upload %d messages for %s failed, queueing: %v", len(missing), convID, err)
			e.enqueue(OpInsertMessages, missing)
		}
	}

	e.store.Update(func(s *LocalState) {
		s.Conversations = merged
	})
	return nil
}

func (e *Engine) syncSettings(ctx context.Context) error {
	remote, err := e.remote.GetSettings(ctx, e.cfg.UserID)
	if err != nil {
		return fmt.Errorf("get remote settings: %w", err)
	}

	var local *models.Settings
	e.store.View(func(s *LocalState) {
		if s.Settings != nil {
			cp := *s.Settings
			local = &cp
		}
	})

	merged, upload := MergeSettings(local, remote)
	if upload && merged != nil {
		if err := e.remote.UpsertSettings(ctx, merged); err != nil {
			log.Printf("[sync] upload settings failed, queueing: %v", err)
			e.enqueue(OpUpsertSettings, *merged)
		}
	}

	e.store.Update(func(s *LocalState) {
		s.Settings = merged
	})
	return nil
}

// QueueMutation records a mutation for later replay, used by callers when
// offline or after a failed immediate write.
func (e *Engine) QueueMutation(opType OpType, payload any) error {
	return e.enqueue(opType, payload)
}

func (e *Engine) enqueue(opType OpType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal queued op: %w", err)
	}
	e.queue.Push(QueuedOperation{
		ID:        uuid.NewString(),
		Type:      opType,
		Payload:   raw,
		CreatedAt: time.Now(),
	})
	e.persistQueue()
	return nil
}

func (e *Engine) drainQueue(ctx context.Context) {
	if e.queue.Len() == 0 {
		return
	}
	applied := e.queue.Drain(func(op QueuedOperation) error {
		return e.applyOp(ctx, op)
	})
	if applied > 0 {
		log.Printf("[sync] replayed %d queued operations, %d pending", applied, e.queue.Len())
	}
	e.persistQueue()
}

func (e *Engine) applyOp(ctx context.Context, op QueuedOperation) error {
	switch op.Type {
	case OpUpsertDocument:
		var doc models.Document
		if err := json.Unmarshal(op.Payload, &doc); err != nil {
			return err
		}
		return e.remote.UpsertDocument(ctx, &doc)
	case OpDeleteDocument:
		var doc models.Document
		if err := json.Unmarshal(op.Payload, &doc); err != nil {
			return err
		}
		return e.remote.DeleteDocument(ctx, doc.ID)
	case OpUpsertConversation:
		var conv models.Conversation
		if err := json.Unmarshal(op.Payload, &conv); err != nil {
			return err
		}
		return e.remote.UpsertConversation(ctx, &conv)
	case OpInsertMessages:
		var msgs []models.Message
		if err := json.Unmarshal(op.Payload, &msgs); err != nil {
			return err
		}
		return e.remote.InsertMessages(ctx, msgs)
	case OpUpsertSettings:
		var s models.Settings
		if err := json.Unmarshal(op.Payload, &s); err != nil {
			return err
		}
		return e.remote.UpsertSettings(ctx, &s)
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}

func (e *Engine) persistQueue() {
	snapshot := e.queue.Snapshot()
	e.store.Update(func(s *LocalState) {
		s.Queue = snapshot
	})
}
