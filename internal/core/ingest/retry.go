package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/advisorhq/advisor-backend/internal/core"
)

const embedRetryBaseDelay = 300 * time.Millisecond

// embedWithRetry embeds a single chunk, retrying transient provider failures
// with doubling backoff. Sibling chunks are independent; a chunk that still
// fails after retries fails its document rather than silently vanishing.
func embedWithRetry(ctx context.Context, embedder core.EmbeddingProvider, text string, retries int) ([]float32, error) {
	var lastErr error
	delay := embedRetryBaseDelay

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			log.Printf("ingest: embed retry attempt=%d error=%v", attempt, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		vecs, err := embedder.EmbedTexts(ctx, []string{text})
		if err != nil {
			lastErr = err
			continue
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			lastErr = fmt.Errorf("embed returned %d vectors for 1 text", len(vecs))
			continue
		}
		return vecs[0], nil
	}
	return nil, fmt.Errorf("embed chunk: %w", lastErr)
}
