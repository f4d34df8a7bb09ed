// Package sync reconciles a local snapshot of documents, conversations, and
// settings against the remote store. Merging is last-write-wins by UpdatedAt;
// mutations attempted while offline are queued and replayed on reconnect.
package sync

import (
	"encoding/json"
	"time"

	"github.com/advisorhq/advisor-backend/internal/models"
)

// Category identifies an independently synced data collection.
type Category string

const (
	CategoryConversations Category = "conversations"
	CategoryDocuments     Category = "documents"
	CategorySettings      Category = "settings"
)

// Categories in drain order for a full sync.
var Categories = []Category{CategoryConversations, CategoryDocuments, CategorySettings}

// OpType names a replayable remote mutation.
type OpType string

const (
	OpUpsertDocument     OpType = "upsert_document"
	OpDeleteDocument     OpType = "delete_document"
	OpUpsertConversation OpType = "upsert_conversation"
	OpInsertMessages     OpType = "insert_messages"
	OpUpsertSettings     OpType = "upsert_settings"
)

// QueuedOperation is a mutation that could not be confirmed against the
// remote store. It is retried until it succeeds or is evicted from the queue.
type QueuedOperation struct {
	ID        string          `json:"id"`
	Type      OpType          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Attempts  int             `json:"attempts"`
}

// LocalState is the on-disk snapshot the engine works against. Messages are
// keyed by conversation ID.
type LocalState struct {
	Documents     map[string]models.Document     `json:"documents"`
	Conversations map[string]models.Conversation `json:"conversations"`
	Messages      map[string][]models.Message    `json:"messages"`
	Settings      *models.Settings               `json:"settings,omitempty"`
	Queue         []QueuedOperation              `json:"queue"`
	LastSyncAt    map[Category]time.Time         `json:"last_sync_at"`
}

func newLocalState() LocalState {
	s := LocalState{}
	s.ensureMaps()
	return s
}

// ensureMaps backfills nil maps after a zero-value init or a JSON load of an
// older snapshot.
func (s *LocalState) ensureMaps() {
	if s.Documents == nil {
		s.Documents = map[string]models.Document{}
	}
	if s.Conversations == nil {
		s.Conversations = map[string]models.Conversation{}
	}
	if s.Messages == nil {
		s.Messages = map[string][]models.Message{}
	}
	if s.LastSyncAt == nil {
		s.LastSyncAt = map[Category]time.Time{}
	}
}

// Status is the client-facing view of the engine.
type Status struct {
	IsOnline          bool                   `json:"is_online"`
	IsSyncing         bool                   `json:"is_syncing"`
	LastSyncAt        map[Category]time.Time `json:"last_sync_at"`
	PendingOperations int                    `json:"pending_operations"`
	CloudEnabled      bool                   `json:"cloud_enabled"`
}

// SyncResult reports the outcome of a full sync cycle.
type SyncResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}
