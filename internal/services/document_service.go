package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/advisorhq/advisor-backend/internal/core"
	"github.com/advisorhq/advisor-backend/internal/models"
)

type DocumentService struct {
	db       core.DbClient
	storage  core.ObjectClient
	embedder core.EmbeddingProvider
	bucket   string
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, embedder core.EmbeddingProvider, bucket string) *DocumentService {
	return &DocumentService{db: db, storage: storage, embedder: embedder, bucket: bucket}
}

// UploadAndCreate stores the raw blob and creates the document in pending
// state. The pipeline claims it asynchronously.
func (s *DocumentService) UploadAndCreate(ctx context.Context, userID, filename, contentType string, data []byte) (*models.Document, error) {
	docID := uuid.NewString()
	key := s.objectKey(userID, docID, filename)

	if _, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	now := time.Now()
	doc := &models.Document{
		ID:         docID,
		OwnerID:    userID,
		Name:       filename,
		MimeType:   contentType,
		SizeBytes:  int64(len(data)),
		StorageKey: key,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.db.GetDocumentByID(ctx, id)
}

func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.db.ListDocumentsByUser(ctx, userID)
}

// Delete removes the document, its chunks, and the stored blob. The blob
// delete is best-effort; the record removal is what matters to callers.
func (s *DocumentService) Delete(ctx context.Context, doc *models.Document) error {
	if err := s.db.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}
	if doc.StorageKey != "" {
		if err := s.storage.DeleteFile(ctx, s.bucket, doc.StorageKey); err != nil {
			return fmt.Errorf("document deleted but blob remains: %w", err)
		}
	}
	return nil
}

// Search embeds the query and ranks the user's chunks by cosine similarity,
// attaching the owning document to each hit.
func (s *DocumentService) Search(ctx context.Context, userID, query string, limit int, threshold float64) ([]models.ChunkMatch, error) {
	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: empty response")
	}

	matches, err := s.db.SearchSimilarChunks(ctx, userID, vecs[0], limit, threshold)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	// One lookup per distinct document; result sets are small.
	docs := make(map[string]*models.Document)
	for i := range matches {
		docID := matches[i].Chunk.DocumentID
		doc, ok := docs[docID]
		if !ok {
			doc, err = s.db.GetDocumentByID(ctx, docID)
			if err != nil {
				return nil, err
			}
			docs[docID] = doc
		}
		matches[i].Document = doc
	}
	return matches, nil
}

// objectKey creates a consistent S3 key layout.
func (s *DocumentService) objectKey(userID, docID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("users", userID, "documents", docID, filename)
}
