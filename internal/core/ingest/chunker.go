package ingest

import (
	"strings"
)

// Chunk is the internal representation passed through the pipeline.
//
// Index:      stable, zero-based position of the chunk inside the document.
// Text:       chunk content (one or more whole sentences).
// TokenCount: approximate token count (budget heuristic, not exact).
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}

// ChunkText splits text into token-bounded chunks on sentence boundaries.
// Sentences are accumulated greedily; the chunk is flushed when the next
// sentence would exceed maxTokens. A single sentence longer than the budget
// is emitted as its own oversized chunk rather than split mid-sentence.
//
// Chunks concatenated in index order reproduce the input up to whitespace
// normalization.
func ChunkText(text string, maxTokens int) []Chunk {
	if maxTokens <= 0 {
		maxTokens = 500
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	var buf []string
	tokSum := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       strings.Join(buf, " "),
			TokenCount: tokSum,
		})
		buf = buf[:0]
		tokSum = 0
	}

	for _, s := range sentences {
		t := approxTokens(s)
		if tokSum > 0 && tokSum+t > maxTokens {
			flush()
		}
		buf = append(buf, s)
		tokSum += t
	}
	flush()

	return chunks
}

// splitSentences cuts on '.', '!' and '?' while keeping every non-whitespace
// character, so chunk concatenation stays lossless. Runs of terminators
// ("...", "?!") stay attached to their sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isSentenceEnd(text[i]) {
			continue
		}
		if i+1 < len(text) && isSentenceEnd(text[i+1]) {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func isSentenceEnd(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token), consistent
// enough with the embedding model's tokenizer to serve as a budget heuristic.
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
