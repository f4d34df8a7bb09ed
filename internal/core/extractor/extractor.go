package extractor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/advisorhq/advisor-backend/internal/core"
)

// Extraction errors. Both degrade to placeholder text at the ExtractText
// boundary; they exist so the individual strategies can report what went
// wrong without aborting the pipeline.
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrCorruptFile     = errors.New("corrupt or unreadable file")
)

const (
	mimePDF   = "application/pdf"
	mimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS   = "application/vnd.ms-excel"
	mimeDOC   = "application/msword"
	mimePPT   = "application/vnd.ms-powerpoint"
	mimePPTX  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeCSV   = "text/csv"
	mimePlain = "text/plain"
)

// extractFunc is one parsing strategy. Strategies may fail; the dispatcher
// turns failures into placeholder text.
type extractFunc func(data []byte, fileName string) (string, error)

// MimeExtractor dispatches on the declared content type (no sniffing) using a
// strategy table. Unknown types resolve to an explicit placeholder strategy
// rather than an error path.
type MimeExtractor struct {
	strategies map[string]extractFunc
}

var _ core.DocumentExtractor = (*MimeExtractor)(nil)

func NewMimeExtractor() *MimeExtractor {
	e := &MimeExtractor{}
	e.strategies = map[string]extractFunc{
		mimePDF:   extractPDF,
		mimeDOCX:  e.extractDOCX,
		mimeXLSX:  extractWorkbook,
		mimeXLS:   extractWorkbook,
		mimeCSV:   extractCSV,
		mimePlain: extractPlainText,
		mimeDOC:   extractLegacyOffice,
		mimePPT:   extractLegacyOffice,
		mimePPTX:  extractLegacyOffice,
	}
	return e
}

// ExtractText converts an uploaded file to plain text. It never fails past
// this boundary: unsupported types, corrupt files and parser panics all come
// back as placeholder text describing the file instead. The only error
// returned is context cancellation.
func (e *MimeExtractor) ExtractText(ctx context.Context, data []byte, contentType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mt := normalizeContentType(contentType)

	// Images are a deliberate capability gap: no OCR. The placeholder keeps
	// the document analyzable by name and metadata only.
	if strings.HasPrefix(mt, "image/") {
		return placeholderText(fileName, mt, len(data), "OCR is not implemented; image content was not read"), nil
	}

	strategy, ok := e.strategies[mt]
	if !ok {
		log.Printf("extractor: no strategy for content type %q (%s)", mt, fileName)
		return placeholderText(fileName, mt, len(data), fmt.Sprintf("%v: %s", ErrUnsupportedType, mt)), nil
	}

	text, err := runStrategy(strategy, data, fileName)
	if err != nil {
		log.Printf("extractor: %s extraction failed for %s: %v", mt, fileName, err)
		return placeholderText(fileName, mt, len(data), fmt.Sprintf("extraction failed: %v", err)), nil
	}
	if strings.TrimSpace(text) == "" {
		return placeholderText(fileName, mt, len(data), "no text content found"), nil
	}
	return text, nil
}

// runStrategy guards against parser panics on malformed input; third-party
// binary parsers are not trusted to fail cleanly.
func runStrategy(fn extractFunc, data []byte, fileName string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: parser panic: %v", ErrCorruptFile, r)
		}
	}()
	return fn(data, fileName)
}

func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// placeholderText is the synthetic content substituted when real extraction
// is infeasible. It is still fed to the analyzer, which will degrade to its
// heuristic path on it.
func placeholderText(fileName, contentType string, size int, reason string) string {
	return fmt.Sprintf("[File: %s | Type: %s | Size: %d bytes]\nText extraction unavailable: %s.",
		fileName, contentType, size, reason)
}

func extractPlainText(data []byte, _ string) (string, error) {
	return string(data), nil
}

// extractCSV passes the raw content through with a literal label so the
// analyzer knows it is looking at tabular data.
func extractCSV(data []byte, _ string) (string, error) {
	return "CSV data:\n" + string(data), nil
}
