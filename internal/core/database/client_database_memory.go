package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/advisorhq/advisor-backend/internal/core"
	"github.com/advisorhq/advisor-backend/internal/models"
)

// MemoryClient is an in-memory DbClient used by tests and local mode. It
// mirrors the Postgres client's semantics, including the single-write status
// transition and cosine-ranked chunk search.
type MemoryClient struct {
	mu            sync.RWMutex
	users         map[string]*models.User // keyed by email
	documents     map[string]*models.Document
	chunks        map[string][]models.DocumentChunk // documentID -> chunks
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message // conversationID -> messages
	settings      map[string]*models.Settings // ownerID -> settings
}

var _ core.DbClient = (*MemoryClient)(nil)

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		users:         make(map[string]*models.User),
		documents:     make(map[string]*models.Document),
		chunks:        make(map[string][]models.DocumentChunk),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
		settings:      make(map[string]*models.Settings),
	}
}

func (c *MemoryClient) Close() error { return nil }

func (c *MemoryClient) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("nil user")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.users[user.Email]; exists {
		return fmt.Errorf("user exists: %s", user.Email)
	}
	cp := *user
	c.users[user.Email] = &cp
	return nil
}

func (c *MemoryClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (c *MemoryClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil {
		return errors.New("nil document")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *doc
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	c.documents[doc.ID] = &cp
	return nil
}

func (c *MemoryClient) UpsertDocument(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil {
		return errors.New("nil document")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *doc
	c.documents[doc.ID] = &cp
	return nil
}

func (c *MemoryClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.documents[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (c *MemoryClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Document
	for _, d := range c.documents {
		if d.OwnerID == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (c *MemoryClient) UpdateDocumentStatus(ctx context.Context, id string, status string, upd *core.StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.documents[id]
	if !ok {
		return fmt.Errorf("document not found: %s", id)
	}
	d.Status = status
	if upd != nil {
		if upd.ExtractedText != "" {
			d.ExtractedText = upd.ExtractedText
		}
		if upd.ErrorMessage != "" {
			d.ErrorMessage = upd.ErrorMessage
		}
		if a := upd.Analysis; a != nil {
			d.Summary = a.Summary
			d.KeyPoints = a.KeyPoints
			d.Entities = a.Entities
			d.BusinessRelevance = a.BusinessRelevance
		}
	}
	d.UpdatedAt = time.Now()
	return nil
}

func (c *MemoryClient) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.documents[id]; !ok {
		return fmt.Errorf("document not found: %s", id)
	}
	delete(c.documents, id)
	delete(c.chunks, id)
	return nil
}

func (c *MemoryClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	docID := chunks[0].DocumentID
	cp := make([]models.DocumentChunk, len(chunks))
	copy(cp, chunks)
	for i := range cp {
		if cp[i].CreatedAt.IsZero() {
			cp[i].CreatedAt = time.Now()
		}
	}
	// Replace, matching the Postgres client's delete-then-insert transaction.
	c.chunks[docID] = cp
	return nil
}

func (c *MemoryClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.DocumentChunk, len(c.chunks[documentID]))
	copy(out, c.chunks[documentID])
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (c *MemoryClient) SearchSimilarChunks(ctx context.Context, userID string, queryVec []float32, limit int, threshold float64) ([]models.ChunkMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.ChunkMatch
	for docID, chunks := range c.chunks {
		doc, ok := c.documents[docID]
		if !ok || doc.OwnerID != userID {
			continue
		}
		for _, ch := range chunks {
			sim, err := cosineSimilarity(queryVec, ch.Embedding)
			if err != nil {
				continue
			}
			if sim < threshold {
				continue
			}
			out = append(out, models.ChunkMatch{Chunk: ch, Similarity: sim})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Chunk.CreatedAt.After(out[j].Chunk.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *MemoryClient) ListConversationsByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Conversation
	for _, cv := range c.conversations {
		if cv.OwnerID == userID {
			out = append(out, *cv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (c *MemoryClient) UpsertConversation(ctx context.Context, conv *models.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if conv == nil {
		return errors.New("nil conversation")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *conv
	c.conversations[conv.ID] = &cp
	return nil
}

func (c *MemoryClient) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Message, len(c.messages[conversationID]))
	copy(out, c.messages[conversationID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (c *MemoryClient) InsertMessages(ctx context.Context, msgs []models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		exists := false
		for _, have := range c.messages[m.ConversationID] {
			if have.ID == m.ID {
				exists = true
				break
			}
		}
		if !exists {
			c.messages[m.ConversationID] = append(c.messages[m.ConversationID], m)
		}
	}
	return nil
}

func (c *MemoryClient) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.settings[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (c *MemoryClient) UpsertSettings(ctx context.Context, s *models.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("nil settings")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *s
	c.settings[s.OwnerID] = &cp
	return nil
}

// cosineSimilarity matches the pgvector <=> operator semantics the Postgres
// client relies on (similarity = 1 - cosine distance).
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errors.New("empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
