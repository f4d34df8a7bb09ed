package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/advisorhq/advisor-backend/internal/models"
)

// Neutral relevance reported when no model judgement is available.
const fallbackRelevance = 0.5

const minKeywordLen = 4

// tooShortAnalysis is the fixed result for empty or near-empty text. The LLM
// is never called for it, so the result is identical regardless of provider
// availability.
func tooShortAnalysis() *models.Analysis {
	return &models.Analysis{
		Summary:           "Document is too short to analyze.",
		KeyPoints:         []string{},
		Entities:          normalizeEntities(nil),
		BusinessRelevance: 0,
	}
}

// fallbackAnalysis builds a heuristic result from word statistics: a
// word-count summary, frequency-ranked keywords, and a neutral relevance.
func fallbackAnalysis(text string) *models.Analysis {
	words := strings.Fields(text)
	keywords := topKeywords(words, maxKeyPoints)

	summary := fmt.Sprintf("Document contains %d words.", len(words))
	if len(keywords) > 0 {
		summary = fmt.Sprintf("Document contains %d words. Frequent topics: %s.",
			len(words), strings.Join(keywords, ", "))
	}

	return &models.Analysis{
		Summary:           summary,
		KeyPoints:         keywords,
		Entities:          normalizeEntities(nil),
		BusinessRelevance: fallbackRelevance,
	}
}

// topKeywords frequency-counts words of at least minKeywordLen characters
// after stop-word removal. Ties break alphabetically so the result is
// deterministic for a given input.
func topKeywords(words []string, limit int) []string {
	freq := make(map[string]int)
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]{}"))
		if len(w) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		freq[w]++
	}

	ranked := make([]string, 0, len(freq))
	for w := range freq {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if freq[ranked[i]] != freq[ranked[j]] {
			return freq[ranked[i]] > freq[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"about", "above", "after", "again", "against", "been", "before",
		"being", "below", "between", "both", "because", "cannot", "could", "does",
		"doing", "down", "during", "each", "from", "further", "have", "having",
		"here", "into", "itself", "just", "more", "most", "only", "other",
		"over", "same", "should", "some", "such", "than", "that", "their",
		"them", "then", "there", "these", "they", "this", "those", "through",
		"under", "until", "very", "were", "what", "when", "where", "which",
		"while", "will", "with", "would", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
