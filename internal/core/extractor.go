package core

import "context"

// DocumentExtractor converts an uploaded file into plain text. The
// contentType hint selects the parsing strategy; extraction degrades to
// placeholder text instead of failing, so the returned error is reserved for
// context cancellation.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string, fileName string) (string, error)
}
