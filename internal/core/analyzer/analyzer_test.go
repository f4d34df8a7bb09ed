package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(_ context.Context, _, _ string) (string, error) {
	return f.response, f.err
}

const sampleText = "The quarterly revenue report shows revenue growth across all product lines and revenue targets were met."

func TestAnalyzeTooShortIsFixed(t *testing.T) {
	a := NewLLMAnalyzer(&fakeLLM{response: "should never be called"})

	for _, text := range []string{"", "   ", "hi"} {
		res := a.Analyze(context.Background(), text, "empty.txt")
		if res.Summary != "Document is too short to analyze." {
			t.Fatalf("summary = %q", res.Summary)
		}
		if len(res.KeyPoints) != 0 {
			t.Fatalf("key points = %v, want empty", res.KeyPoints)
		}
		if res.BusinessRelevance != 0 {
			t.Fatalf("relevance = %v, want 0", res.BusinessRelevance)
		}
		if res.Entities == nil {
			t.Fatal("entities must be non-nil")
		}
	}
}

func TestAnalyzeNilProviderUsesFallback(t *testing.T) {
	a := NewLLMAnalyzer(nil)

	res := a.Analyze(context.Background(), sampleText, "report.txt")
	if res.BusinessRelevance != 0.5 {
		t.Fatalf("fallback relevance = %v, want 0.5", res.BusinessRelevance)
	}
	if !strings.Contains(res.Summary, "words") {
		t.Fatalf("fallback summary = %q", res.Summary)
	}
}

func TestAnalyzeLLMErrorUsesFallback(t *testing.T) {
	a := NewLLMAnalyzer(&fakeLLM{err: errors.New("rate limited")})

	res := a.Analyze(context.Background(), sampleText, "report.txt")
	if res.BusinessRelevance != 0.5 {
		t.Fatalf("fallback relevance = %v, want 0.5", res.BusinessRelevance)
	}
}

func TestAnalyzeParsesJSONWithPreamble(t *testing.T) {
	a := NewLLMAnalyzer(&fakeLLM{response: "Sure, here is the analysis:\n```json\n" +
		`{"summary": "A revenue report.", "key_points": ["growth"], ` +
		`"entities": {"people": ["Ann"], "organizations": [], "dates": [], "amounts": []}, ` +
		`"business_relevance": 0.8}` + "\n```"})

	res := a.Analyze(context.Background(), sampleText, "report.txt")
	if res.Summary != "A revenue report." {
		t.Fatalf("summary = %q", res.Summary)
	}
	if len(res.KeyPoints) != 1 || res.KeyPoints[0] != "growth" {
		t.Fatalf("key points = %v", res.KeyPoints)
	}
	if res.BusinessRelevance != 0.8 {
		t.Fatalf("relevance = %v", res.BusinessRelevance)
	}
	if len(res.Entities.People) != 1 || res.Entities.People[0] != "Ann" {
		t.Fatalf("entities = %+v", res.Entities)
	}
}

func TestAnalyzeMalformedJSONUsesFallback(t *testing.T) {
	for _, response := range []string{
		"no json here at all",
		`{"summary": "truncated`,
		`{"summary": "", "key_points": ["x"]}`,
		`{"summary": "ok", "key_points": []}`,
	} {
		a := NewLLMAnalyzer(&fakeLLM{response: response})
		res := a.Analyze(context.Background(), sampleText, "report.txt")
		if res.BusinessRelevance != 0.5 {
			t.Fatalf("response %q should degrade to fallback, got relevance %v", response, res.BusinessRelevance)
		}
	}
}

func TestAnalyzeClampsRelevanceAndKeyPoints(t *testing.T) {
	a := NewLLMAnalyzer(&fakeLLM{response: `{"summary": "s", ` +
		`"key_points": ["1","2","3","4","5","6","7"], "business_relevance": 3.5}`})

	res := a.Analyze(context.Background(), sampleText, "report.txt")
	if res.BusinessRelevance != 1 {
		t.Fatalf("relevance = %v, want clamped to 1", res.BusinessRelevance)
	}
	if len(res.KeyPoints) != 5 {
		t.Fatalf("key points = %d, want clamped to 5", len(res.KeyPoints))
	}
}

func TestFirstBalancedObjectIgnoresBracesInStrings(t *testing.T) {
	got := firstBalancedObject(`noise {"a": "value with } brace", "b": {"c": 1}} trailing`)
	want := `{"a": "value with } brace", "b": {"c": 1}}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTopKeywordsFrequencyAndStopwords(t *testing.T) {
	words := strings.Fields("revenue revenue revenue budget budget because because the a an forecast")

	got := topKeywords(words, 5)
	if len(got) != 3 {
		t.Fatalf("got %v, want 3 keywords", got)
	}
	if got[0] != "revenue" || got[1] != "budget" || got[2] != "forecast" {
		t.Fatalf("unexpected ranking: %v", got)
	}
}

func TestFallbackSummaryWordCount(t *testing.T) {
	res := fallbackAnalysis("alpha beta gamma delta epsilon")
	if !strings.HasPrefix(res.Summary, "Document contains 5 words.") {
		t.Fatalf("summary = %q", res.Summary)
	}
}
