package extractor

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"code.sajari.com/docconv"
)

// extractDOCX uses docconv's raw-text conversion, discarding formatting.
func (e *MimeExtractor) extractDOCX(data []byte, _ string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mimeDOCX, false)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	return res.Body, nil
}

// Minimum usable characters a legacy scan must yield before we trust it over
// a plain placeholder.
const legacyScanMinChars = 20

// extractLegacyOffice is the best-effort path for legacy .doc and PowerPoint
// binaries: a naive printable-ASCII scan over the raw bytes. It is knowingly
// lossy. Runs shorter than 4 characters are discarded, as are runs that look
// like container or XML artifacts. When the scan yields too little usable
// text the caller falls back to a metadata placeholder, same as images.
func extractLegacyOffice(data []byte, _ string) (string, error) {
	text := scanPrintableASCII(data)
	if len(text) < legacyScanMinChars {
		return "", fmt.Errorf("%w: legacy binary scan found no usable text", ErrUnsupportedType)
	}
	return text, nil
}

func scanPrintableASCII(data []byte) string {
	var runs []string
	var cur []byte

	flush := func() {
		if len(cur) >= 4 {
			s := strings.TrimSpace(string(cur))
			if len(s) >= 4 && !looksLikeContainerArtifact(s) {
				runs = append(runs, s)
			}
		}
		cur = cur[:0]
	}

	for _, b := range data {
		if b >= 32 && b <= 126 {
			cur = append(cur, b)
		} else {
			flush()
		}
	}
	flush()

	return strings.Join(runs, " ")
}

// looksLikeContainerArtifact filters runs that are clearly OOXML/zip plumbing
// rather than document prose.
func looksLikeContainerArtifact(s string) bool {
	ls := strings.ToLower(s)
	for _, marker := range []string{
		"<?xml", "xmlns", "http://schemas.", "content_types", ".rels",
		"docprops", "word/", "ppt/", "theme1.xml",
	} {
		if strings.Contains(ls, marker) {
			return true
		}
	}
	if strings.HasPrefix(s, "PK") {
		return true
	}

	// Mostly-symbolic runs are compression noise, not text.
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) || r == ' ' {
			letters++
		}
	}
	return float64(letters)/float64(len([]rune(s))) < 0.6
}
