package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/advisorhq/advisor-backend/internal/core"
	"github.com/advisorhq/advisor-backend/internal/models"
)

// Config tunes the pipeline.
//
// Bucket:           object-store bucket holding the raw uploads.
// MaxChunkTokens:   token budget per chunk (e.g., 500).
// EmbedConcurrency: bounded parallelism for per-chunk embedding calls.
// EmbedRetries:     retries per chunk before failing the document.
type Config struct {
	Bucket           string
	MaxChunkTokens   int
	EmbedConcurrency int
	EmbedRetries     int
}

// DefaultConfig returns the tuning used by the API server.
func DefaultConfig(bucket string) *Config {
	return &Config{
		Bucket:           bucket,
		MaxChunkTokens:   500,
		EmbedConcurrency: 4,
		EmbedRetries:     2,
	}
}

type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(docID string)
	ProcessOne(ctx context.Context, docID string) error
}

// DocumentIngestor orchestrates the background pipeline for one document:
// fetch blob → extract text → (analyze ∥ chunk+embed) → persist chunks →
// atomic ready transition. Jobs arrive on an in-memory queue.
type DocumentIngestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	analyzer  core.DocumentAnalyzer
	extractor core.DocumentExtractor
	cfg       *Config
	jobs      chan string
}

var _ Ingestor = (*DocumentIngestor)(nil)

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
func NewDocumentIngestor(db core.DbClient, obj core.ObjectClient, emb core.EmbeddingProvider, an core.DocumentAnalyzer, ex core.DocumentExtractor, cfg *Config) *DocumentIngestor {
	return &DocumentIngestor{
		db: db, obj: obj, embedder: emb, analyzer: an, extractor: ex, cfg: cfg,
		jobs: make(chan string, 64),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("ingest: worker %d shutting down", w)
					return
				case docID := <-i.jobs:
					log.Printf("ingest: worker %d processing document %s", w, docID)
					if err := i.ProcessOne(ctx, docID); err != nil {
						log.Printf("ingest: document %s failed: %v", docID, err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules a document ID for ingestion. Blocks if the queue is full.
func (i *DocumentIngestor) Enqueue(docID string) {
	i.jobs <- docID
}

// ProcessOne runs the full pipeline for one document. Re-entry is guarded:
// documents already processing or ready are left alone, so an at-least-once
// trigger never corrupts a finished document.
func (i *DocumentIngestor) ProcessOne(ctx context.Context, docID string) error {
	proctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	doc, err := i.db.GetDocumentByID(proctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", docID)
	}
	if doc.Status == models.StatusProcessing || doc.Status == models.StatusReady {
		log.Printf("ingest: document %s already %s, skipping", docID, doc.Status)
		return nil
	}

	if err := i.db.UpdateDocumentStatus(proctx, docID, models.StatusProcessing, nil); err != nil {
		return fmt.Errorf("claim document: %w", err)
	}

	data, err := i.obj.GetFile(proctx, i.cfg.Bucket, doc.StorageKey)
	if err != nil {
		return i.fail(docID, fmt.Errorf("fetch blob: %w", err))
	}

	text, err := i.extractor.ExtractText(proctx, data, doc.MimeType, doc.Name)
	if err != nil {
		return i.fail(docID, fmt.Errorf("extract: %w", err))
	}

	// Analysis runs concurrently with chunking and embedding; neither depends
	// on the other's output.
	g, gctx := errgroup.WithContext(proctx)

	var analysis *models.Analysis
	g.Go(func() error {
		analysis = i.analyzer.Analyze(gctx, text, doc.Name)
		return nil
	})

	chunks := ChunkText(text, i.cfg.MaxChunkTokens)
	rows := make([]models.DocumentChunk, len(chunks))
	g.Go(func() error {
		return i.embedChunks(gctx, docID, chunks, rows)
	})

	if err := g.Wait(); err != nil {
		return i.fail(docID, err)
	}

	if err := i.db.InsertDocumentChunks(proctx, rows); err != nil {
		return i.fail(docID, fmt.Errorf("insert chunks: %w", err))
	}

	return i.db.UpdateDocumentStatus(proctx, docID, models.StatusReady, &core.StatusUpdate{
		ExtractedText: text,
		Analysis:      analysis,
	})
}

// embedChunks issues one embedding call per chunk under bounded parallelism.
// Any chunk failing after retries cancels the rest and fails the document;
// partial success is never reported as ready.
func (i *DocumentIngestor) embedChunks(ctx context.Context, docID string, chunks []Chunk, rows []models.DocumentChunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.EmbedConcurrency)

	for idx := range chunks {
		g.Go(func() error {
			vec, err := embedWithRetry(gctx, i.embedder, chunks[idx].Text, i.cfg.EmbedRetries)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunks[idx].Index, err)
			}
			rows[idx] = models.DocumentChunk{
				ID:         uuid.NewString(),
				DocumentID: docID,
				ChunkIndex: chunks[idx].Index,
				Text:       chunks[idx].Text,
				Embedding:  vec,
				TokenCount: chunks[idx].TokenCount,
			}
			return nil
		})
	}
	return g.Wait()
}

// fail drives the document to its terminal failed state. Failed documents
// are not retried automatically; re-analysis happens only through the
// explicit trigger endpoint.
func (i *DocumentIngestor) fail(docID string, cause error) error {
	// Fresh context: the processing context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := i.db.UpdateDocumentStatus(ctx, docID, models.StatusFailed, &core.StatusUpdate{
		ErrorMessage: cause.Error(),
	}); err != nil {
		log.Printf("ingest: could not mark document %s failed: %v", docID, err)
	}
	return cause
}
