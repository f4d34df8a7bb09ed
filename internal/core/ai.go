package core

import (
	"context"

	"github.com/advisorhq/advisor-backend/internal/models"
)

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// DocumentAnalyzer produces a summary, key points and named entities for a
// document. Implementations must always return a structurally valid Analysis;
// provider failures degrade to a heuristic result instead of erroring.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, text string, documentName string) *models.Analysis
}
