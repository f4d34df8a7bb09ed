package extractor

import (
	"context"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	e := NewMimeExtractor()

	got, err := e.ExtractText(context.Background(), []byte("hello world"), "text/plain", "note.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestExtractPlainTextWithCharsetParam(t *testing.T) {
	e := NewMimeExtractor()

	got, err := e.ExtractText(context.Background(), []byte("abc"), "text/plain; charset=utf-8", "note.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc" {
		t.Fatalf("charset parameter broke dispatch: got %q", got)
	}
}

func TestExtractCSVHasLabel(t *testing.T) {
	e := NewMimeExtractor()

	got, err := e.ExtractText(context.Background(), []byte("a,b\n1,2\n"), "text/csv", "data.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "CSV data:\n") {
		t.Fatalf("missing CSV label: %q", got)
	}
	if !strings.Contains(got, "a,b") {
		t.Fatalf("csv content lost: %q", got)
	}
}

func TestExtractImageReturnsPlaceholder(t *testing.T) {
	e := NewMimeExtractor()

	got, err := e.ExtractText(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47}, "image/png", "scan.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "scan.png") || !strings.Contains(got, "image/png") {
		t.Fatalf("placeholder missing file metadata: %q", got)
	}
	if !strings.Contains(got, "OCR is not implemented") {
		t.Fatalf("placeholder missing reason: %q", got)
	}
}

func TestExtractUnknownTypeReturnsPlaceholder(t *testing.T) {
	e := NewMimeExtractor()

	got, err := e.ExtractText(context.Background(), []byte("binary"), "application/x-whatever", "blob.bin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Text extraction unavailable") {
		t.Fatalf("expected placeholder for unknown type, got %q", got)
	}
}

func TestExtractCorruptPDFReturnsPlaceholder(t *testing.T) {
	e := NewMimeExtractor()

	got, err := e.ExtractText(context.Background(), []byte("not a pdf at all"), "application/pdf", "report.pdf")
	if err != nil {
		t.Fatalf("corrupt input must not error past the boundary: %v", err)
	}
	if !strings.Contains(got, "Text extraction unavailable") {
		t.Fatalf("expected placeholder for corrupt pdf, got %q", got)
	}
}

func TestExtractEmptyResultReturnsPlaceholder(t *testing.T) {
	e := NewMimeExtractor()

	got, err := e.ExtractText(context.Background(), []byte("   \n\t "), "text/plain", "blank.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "no text content found") {
		t.Fatalf("expected empty-content placeholder, got %q", got)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	e := NewMimeExtractor()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.ExtractText(ctx, []byte("x"), "text/plain", "x.txt"); err == nil {
		t.Fatal("expected context error")
	}
}
