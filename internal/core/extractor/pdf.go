package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF walks pages in order and concatenates per-page text with a
// blank-line separator. Pages that cannot be decoded are skipped rather than
// failing the whole document.
func extractPDF(data []byte, _ string) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("%w: no readable pages", ErrCorruptFile)
	}
	return strings.Join(pages, "\n\n"), nil
}
