package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/advisorhq/advisor-backend/internal/core"
	"github.com/advisorhq/advisor-backend/internal/models"
)

const (
	// Only a bounded prefix of the document is sent to the model.
	maxPromptChars = 8000
	// Below this there is nothing worth sending to the model at all.
	minAnalyzableChars = 10
	maxKeyPoints       = 5
)

const systemPrompt = `You are a business document analyst. Respond with strict JSON only, no prose and no code fences.`

// LLMAnalyzer asks the model for a structured analysis and degrades to a
// frequency heuristic when the call fails or its output is unusable. Analyze
// never fails: every path returns a structurally valid result.
type LLMAnalyzer struct {
	llm core.LLMProvider
}

var _ core.DocumentAnalyzer = (*LLMAnalyzer)(nil)

// NewLLMAnalyzer constructs the analyzer. A nil provider is allowed and pins
// every call to the fallback path (local mode, tests).
func NewLLMAnalyzer(llm core.LLMProvider) *LLMAnalyzer {
	return &LLMAnalyzer{llm: llm}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, text string, documentName string) *models.Analysis {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minAnalyzableChars {
		return tooShortAnalysis()
	}

	if a.llm == nil {
		return fallbackAnalysis(trimmed)
	}

	raw, err := a.llm.Generate(ctx, systemPrompt, buildPrompt(trimmed, documentName))
	if err != nil {
		log.Printf("analyzer: llm call failed for %s, using fallback: %v", documentName, err)
		return fallbackAnalysis(trimmed)
	}

	res, ok := parseAnalysisJSON(raw)
	if !ok {
		log.Printf("analyzer: unusable llm output for %s, using fallback", documentName)
		return fallbackAnalysis(trimmed)
	}
	return res
}

func buildPrompt(text, documentName string) string {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	return fmt.Sprintf(`Analyze the document %q and return JSON with exactly this shape:
{
  "summary": "2-3 sentence summary",
  "key_points": ["up to 5 key points"],
  "entities": {"people": [], "organizations": [], "dates": [], "amounts": []},
  "business_relevance": 0.0
}
business_relevance is a number between 0 and 1.

Document content:
%s`, documentName, text)
}

// analysisPayload mirrors the JSON shape requested from the model.
type analysisPayload struct {
	Summary           string          `json:"summary"`
	KeyPoints         []string        `json:"key_points"`
	Entities          models.Entities `json:"entities"`
	BusinessRelevance float64         `json:"business_relevance"`
}

// parseAnalysisJSON locates the first balanced {...} object in the response
// and decodes it defensively. Models wrap JSON in prose and code fences often
// enough that a plain Unmarshal of the whole response is a losing strategy.
func parseAnalysisJSON(raw string) (*models.Analysis, bool) {
	obj := firstBalancedObject(raw)
	if obj == "" {
		return nil, false
	}

	var p analysisPayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil, false
	}

	p.Summary = strings.TrimSpace(p.Summary)
	if p.Summary == "" || len(p.KeyPoints) == 0 {
		return nil, false
	}
	if len(p.KeyPoints) > maxKeyPoints {
		p.KeyPoints = p.KeyPoints[:maxKeyPoints]
	}

	return &models.Analysis{
		Summary:           p.Summary,
		KeyPoints:         p.KeyPoints,
		Entities:          normalizeEntities(&p.Entities),
		BusinessRelevance: clamp01(p.BusinessRelevance),
	}, true
}

// firstBalancedObject returns the first top-level {...} substring, tracking
// string literals and escapes so braces inside values do not confuse the
// depth count.
func firstBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func normalizeEntities(e *models.Entities) *models.Entities {
	if e == nil {
		e = &models.Entities{}
	}
	if e.People == nil {
		e.People = []string{}
	}
	if e.Organizations == nil {
		e.Organizations = []string{}
	}
	if e.Dates == nil {
		e.Dates = []string{}
	}
	if e.Amounts == nil {
		e.Amounts = []string{}
	}
	return e
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
