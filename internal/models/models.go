package models

import (
	"time"
)

// Document lifecycle states. Ready and Failed are terminal; a document in a
// terminal state is only touched again by an explicit re-analysis request.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents one uploaded file and everything the pipeline derived
// from it. Name, MimeType and SizeBytes are immutable after creation;
// ExtractedText and the analysis fields stay empty until processing succeeds.
type Document struct {
	ID                string    `db:"id" json:"id"`
	OwnerID           string    `db:"owner_id" json:"owner_id"`
	Name              string    `db:"name" json:"name"`
	MimeType          string    `db:"mime_type" json:"mime_type"`
	SizeBytes         int64     `db:"size_bytes" json:"size_bytes"`
	StorageKey        string    `db:"storage_key" json:"storage_key"` // opaque key into the object store
	Status            string    `db:"status" json:"status"`           // pending | processing | ready | failed
	ExtractedText     string    `db:"extracted_text" json:"extracted_text,omitempty"`
	Summary           string    `db:"summary" json:"summary,omitempty"`
	KeyPoints         []string  `db:"key_points" json:"key_points,omitempty"`
	Entities          *Entities `db:"entities" json:"entities,omitempty"`
	BusinessRelevance float64   `db:"business_relevance" json:"business_relevance"`
	ErrorMessage      string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Entities holds the categorized named entities the analyzer pulls out of a
// document.
type Entities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Dates         []string `json:"dates"`
	Amounts       []string `json:"amounts"`
}

// Analysis is the analyzer's result for one document. The fallback path fills
// the same shape, so callers never branch on how it was produced.
type Analysis struct {
	Summary           string    `json:"summary"`
	KeyPoints         []string  `json:"key_points"`
	Entities          *Entities `json:"entities"`
	BusinessRelevance float64   `json:"business_relevance"`
}

// DocumentChunk represents one text chunk from a document. Chunks ordered by
// ChunkIndex concatenate back to the document's extracted text, modulo
// whitespace normalization.
type DocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	ChunkIndex int       `db:"chunk_index" json:"chunk_index"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"embedding"` // pgvector column
	TokenCount int       `db:"token_count" json:"token_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChunkMatch is one similarity-search hit.
type ChunkMatch struct {
	Chunk      DocumentChunk `json:"chunk"`
	Document   *Document     `json:"document,omitempty"`
	Similarity float64       `json:"relevance_score"`
}

// Conversation represents one advisory chat thread.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Title     string    `db:"title" json:"title"`
	Advisor   string    `db:"advisor" json:"advisor"` // persona the thread was started with
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message represents an individual conversation message (user or assistant).
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Role           string    `db:"role" json:"role"` // "user" or "assistant"
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Settings holds per-user preferences. One row per user.
type Settings struct {
	OwnerID        string    `db:"owner_id" json:"owner_id"`
	Advisor        string    `db:"advisor" json:"advisor"`
	ResponseLength string    `db:"response_length" json:"response_length"` // "brief" | "detailed"
	Notifications  bool      `db:"notifications" json:"notifications"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
