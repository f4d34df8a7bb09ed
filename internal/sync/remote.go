package sync

import (
	"context"

	"github.com/advisorhq/advisor-backend/internal/core"
	"github.com/advisorhq/advisor-backend/internal/models"
)

// RemoteStore is the subset of the backend the engine syncs against.
type RemoteStore interface {
	Ping(ctx context.Context) error

	ListDocuments(ctx context.Context, userID string) ([]models.Document, error)
	UpsertDocument(ctx context.Context, doc *models.Document) error
	DeleteDocument(ctx context.Context, id string) error

	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	UpsertConversation(ctx context.Context, conv *models.Conversation) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	InsertMessages(ctx context.Context, msgs []models.Message) error

	GetSettings(ctx context.Context, userID string) (*models.Settings, error)
	UpsertSettings(ctx context.Context, s *models.Settings) error
}

// StoreAdapter exposes a DbClient as a RemoteStore.
type StoreAdapter struct {
	db     core.DbClient
	userID string
}

var _ RemoteStore = (*StoreAdapter)(nil)

func NewStoreAdapter(db core.DbClient, userID string) *StoreAdapter {
	return &StoreAdapter{db: db, userID: userID}
}

// Ping issues a cheap read to confirm the remote store is reachable.
func (a *StoreAdapter) Ping(ctx context.Context) error {
	_, err := a.db.GetSettings(ctx, a.userID)
	return err
}

func (a *StoreAdapter) ListDocuments(ctx context.Context, userID string) ([]models.Document, error) {
	return a.db.ListDocumentsByUser(ctx, userID)
}

func (a *StoreAdapter) UpsertDocument(ctx context.Context, doc *models.Document) error {
	return a.db.UpsertDocument(ctx, doc)
}

func (a *StoreAdapter) DeleteDocument(ctx context.Context, id string) error {
	return a.db.DeleteDocument(ctx, id)
}

func (a *StoreAdapter) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return a.db.ListConversationsByUser(ctx, userID)
}

func (a *StoreAdapter) UpsertConversation(ctx context.Context, conv *models.Conversation) error {
	return a.db.UpsertConversation(ctx, conv)
}

func (a *StoreAdapter) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	return a.db.ListMessages(ctx, conversationID)
}

func (a *StoreAdapter) InsertMessages(ctx context.Context, msgs []models.Message) error {
	return a.db.InsertMessages(ctx, msgs)
}

func (a *StoreAdapter) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	return a.db.GetSettings(ctx, userID)
}

func (a *StoreAdapter) UpsertSettings(ctx context.Context, s *models.Settings) error {
	return a.db.UpsertSettings(ctx, s)
}
