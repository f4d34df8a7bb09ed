package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/advisorhq/advisor-backend/internal/config"
	"github.com/advisorhq/advisor-backend/internal/core"
	"github.com/advisorhq/advisor-backend/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`
	_, err := c.db.ExecContext(ctx, q, user.ID, user.FirstName, user.Email, user.PasswordHash)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Documents

const documentColumns = `
	id, owner_id, name, mime_type, size_bytes, storage_key, status,
	extracted_text, summary, key_points, entities, business_relevance,
	error_message, created_at, updated_at`

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, owner_id, name, mime_type, size_bytes, storage_key, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), COALESCE($9, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.OwnerID, doc.Name, doc.MimeType, doc.SizeBytes, doc.StorageKey,
		doc.Status, nullTime(doc.CreatedAt), nullTime(doc.UpdatedAt))
	return err
}

// UpsertDocument writes the full record; the sync engine uses it to push a
// locally newer version of a document.
func (c *DatabaseClient) UpsertDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	keyPoints, entities, err := marshalAnalysisColumns(doc.KeyPoints, doc.Entities)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO documents
			(id, owner_id, name, mime_type, size_bytes, storage_key, status,
			 extracted_text, summary, key_points, entities, business_relevance,
			 error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, COALESCE($14, now()), COALESCE($15, now()))
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			extracted_text = EXCLUDED.extracted_text,
			summary = EXCLUDED.summary,
			key_points = EXCLUDED.key_points,
			entities = EXCLUDED.entities,
			business_relevance = EXCLUDED.business_relevance,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`
	_, err = c.db.ExecContext(ctx, q,
		doc.ID, doc.OwnerID, doc.Name, doc.MimeType, doc.SizeBytes, doc.StorageKey,
		doc.Status, nullString(doc.ExtractedText), nullString(doc.Summary),
		keyPoints, entities, doc.BusinessRelevance, nullString(doc.ErrorMessage),
		nullTime(doc.CreatedAt), nullTime(doc.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpdateDocumentStatus is the only mutation path after creation. The status
// and any accompanying fields land in a single UPDATE, so a concurrent reader
// never observes a ready document without its summary or extracted text.
func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string, upd *core.StatusUpdate) error {
	var (
		extractedText, summary, errorMessage *string
		keyPoints, entities                  []byte
		relevance                            *float64
	)
	if upd != nil {
		extractedText = nullString(upd.ExtractedText)
		errorMessage = nullString(upd.ErrorMessage)
		if a := upd.Analysis; a != nil {
			summary = nullString(a.Summary)
			relevance = &a.BusinessRelevance
			var err error
			keyPoints, entities, err = marshalAnalysisColumns(a.KeyPoints, a.Entities)
			if err != nil {
				return err
			}
		}
	}

	const q = `
		UPDATE documents SET
			status = $2,
			extracted_text = COALESCE($3, extracted_text),
			summary = COALESCE($4, summary),
			key_points = COALESCE($5, key_points),
			entities = COALESCE($6, entities),
			business_relevance = COALESCE($7, business_relevance),
			error_message = COALESCE($8, error_message),
			updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status,
		extractedText, summary, keyPoints, entities, relevance, errorMessage)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	// Chunks go with the document via ON DELETE CASCADE.
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// Chunks

// InsertDocumentChunks replaces a document's chunks in a single transaction,
// all-or-nothing per document. Replacing keeps a re-analysis of a previously
// failed document from tripping the (document_id, chunk_index) uniqueness.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, chunks[0].DocumentID,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, chunk_index, text, embedding, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.ChunkIndex, ch.Text, vec, ch.TokenCount, nullTime(ch.CreatedAt),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, chunk_index, text, embedding, token_count, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.Text, &emb, &ch.TokenCount, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchSimilarChunks finds the most similar chunks across all of a user's
// documents. Cosine similarity, descending; results below threshold are
// dropped; ties break by chunk recency.
func (c *DatabaseClient) SearchSimilarChunks(ctx context.Context, userID string, queryVec []float32, limit int, threshold float64) ([]models.ChunkMatch, error) {
	const q = `
		SELECT c.id, c.document_id, c.chunk_index, c.text, c.embedding, c.token_count, c.created_at,
		       1 - (c.embedding <=> $2) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.owner_id = $1
		  AND 1 - (c.embedding <=> $2) >= $3
		ORDER BY similarity DESC, c.created_at DESC
		LIMIT $4
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, userID, vec, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChunkMatch
	for rows.Next() {
		var (
			m   models.ChunkMatch
			emb pgvector.Vector
		)
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.ChunkIndex, &m.Chunk.Text,
			&emb, &m.Chunk.TokenCount, &m.Chunk.CreatedAt, &m.Similarity); err != nil {
			return nil, err
		}
		m.Chunk.Embedding = emb.Slice()
		out = append(out, m)
	}
	return out, rows.Err()
}

// Conversations

func (c *DatabaseClient) ListConversationsByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	const q = `
		SELECT id, owner_id, title, advisor, created_at, updated_at
		FROM conversations WHERE owner_id = $1 ORDER BY updated_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var cv models.Conversation
		if err := rows.Scan(&cv.ID, &cv.OwnerID, &cv.Title, &cv.Advisor, &cv.CreatedAt, &cv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpsertConversation(ctx context.Context, conv *models.Conversation) error {
	if conv == nil {
		return errors.New("nil conversation")
	}
	const q = `
		INSERT INTO conversations (id, owner_id, title, advisor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			advisor = EXCLUDED.advisor,
			updated_at = EXCLUDED.updated_at
	`
	_, err := c.db.ExecContext(ctx, q,
		conv.ID, conv.OwnerID, conv.Title, conv.Advisor, nullTime(conv.CreatedAt), nullTime(conv.UpdatedAt))
	return err
}

func (c *DatabaseClient) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	const q = `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) InsertMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (id) DO NOTHING
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range msgs {
		m := &msgs[i]
		if _, err := stmt.ExecContext(ctx, m.ID, m.ConversationID, m.Role, m.Content, nullTime(m.CreatedAt)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Settings

func (c *DatabaseClient) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	const q = `
		SELECT owner_id, advisor, response_length, notifications, updated_at
		FROM settings WHERE owner_id = $1
	`
	var s models.Settings
	err := c.db.QueryRowContext(ctx, q, userID).Scan(
		&s.OwnerID, &s.Advisor, &s.ResponseLength, &s.Notifications, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) UpsertSettings(ctx context.Context, s *models.Settings) error {
	if s == nil {
		return errors.New("nil settings")
	}
	const q = `
		INSERT INTO settings (owner_id, advisor, response_length, notifications, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (owner_id) DO UPDATE SET
			advisor = EXCLUDED.advisor,
			response_length = EXCLUDED.response_length,
			notifications = EXCLUDED.notifications,
			updated_at = EXCLUDED.updated_at
	`
	_, err := c.db.ExecContext(ctx, q, s.OwnerID, s.Advisor, s.ResponseLength, s.Notifications, nullTime(s.UpdatedAt))
	return err
}

// Scan/marshal helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*models.Document, error) {
	var (
		d                                    models.Document
		extractedText, summary, errorMessage sql.NullString
		keyPoints, entities                  []byte
	)
	err := r.Scan(
		&d.ID, &d.OwnerID, &d.Name, &d.MimeType, &d.SizeBytes, &d.StorageKey, &d.Status,
		&extractedText, &summary, &keyPoints, &entities, &d.BusinessRelevance,
		&errorMessage, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ExtractedText = extractedText.String
	d.Summary = summary.String
	d.ErrorMessage = errorMessage.String
	if len(keyPoints) > 0 {
		if err := json.Unmarshal(keyPoints, &d.KeyPoints); err != nil {
			return nil, fmt.Errorf("decode key_points: %w", err)
		}
	}
	if len(entities) > 0 {
		d.Entities = &models.Entities{}
		if err := json.Unmarshal(entities, d.Entities); err != nil {
			return nil, fmt.Errorf("decode entities: %w", err)
		}
	}
	return &d, nil
}

func marshalAnalysisColumns(keyPoints []string, entities *models.Entities) ([]byte, []byte, error) {
	var kp, en []byte
	var err error
	if keyPoints != nil {
		if kp, err = json.Marshal(keyPoints); err != nil {
			return nil, nil, fmt.Errorf("encode key_points: %w", err)
		}
	}
	if entities != nil {
		if en, err = json.Marshal(entities); err != nil {
			return nil, nil, fmt.Errorf("encode entities: %w", err)
		}
	}
	return kp, en, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
