package core

import (
	"context"

	"github.com/advisorhq/advisor-backend/internal/models"
)

// StatusUpdate carries the fields written together with a status transition.
// Everything is applied in one statement so a reader never observes a ready
// document that is still missing its summary or extracted text.
type StatusUpdate struct {
	ExtractedText string
	Analysis      *models.Analysis
	ErrorMessage  string
}

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string, upd *StatusUpdate) error
	DeleteDocument(ctx context.Context, id string) error

	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	SearchSimilarChunks(ctx context.Context, userID string, queryVec []float32, limit int, threshold float64) ([]models.ChunkMatch, error)

	ListConversationsByUser(ctx context.Context, userID string) ([]models.Conversation, error)
	UpsertConversation(ctx context.Context, conv *models.Conversation) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	InsertMessages(ctx context.Context, msgs []models.Message) error

	GetSettings(ctx context.Context, userID string) (*models.Settings, error)
	UpsertSettings(ctx context.Context, s *models.Settings) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so AWS can be replaced with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
