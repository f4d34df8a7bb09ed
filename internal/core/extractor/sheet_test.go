package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
)

// buildXLSX assembles a minimal OOXML spreadsheet container in memory.
func buildXLSX(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractWorkbook(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/workbook.xml": `<?xml version="1.0"?>
<workbook><sheets><sheet name="Budget"/></sheets></workbook>`,
		"xl/sharedStrings.xml": `<?xml version="1.0"?>
<sst><si><t>Item</t></si><si><t>Cost</t></si><si><t>Laptop</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?>
<worksheet><sheetData>
<row><c t="s"><v>0</v></c><c t="s"><v>1</v></c></row>
<row><c t="s"><v>2</v></c><c><v>1200</v></c></row>
</sheetData></worksheet>`,
	})

	got, err := extractWorkbook(data, "budget.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "=== Sheet: Budget ===") {
		t.Fatalf("missing sheet header: %q", got)
	}
	if !strings.Contains(got, "Item,Cost") {
		t.Fatalf("header row lost: %q", got)
	}
	if !strings.Contains(got, "Laptop,1200") {
		t.Fatalf("data row lost: %q", got)
	}
}

func TestExtractWorkbookInlineStrings(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?>
<worksheet><sheetData>
<row><c t="inlineStr"><is><t>hello</t></is></c><c><v>42</v></c></row>
</sheetData></worksheet>`,
	})

	got, err := extractWorkbook(data, "inline.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "hello,42") {
		t.Fatalf("inline string lost: %q", got)
	}
}

func TestExtractWorkbookTenPlusSheets(t *testing.T) {
	// Zip entry names compared as bytes would put sheet10.xml before
	// sheet2.xml and shift every display name onto the wrong sheet.
	entries := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0"?>
<workbook><sheets>` +
			`<sheet name="Q1"/><sheet name="Q2"/><sheet name="Q3"/><sheet name="Q4"/>` +
			`<sheet name="Q5"/><sheet name="Q6"/><sheet name="Q7"/><sheet name="Q8"/>` +
			`<sheet name="Q9"/><sheet name="Q10"/><sheet name="Q11"/>` +
			`</sheets></workbook>`,
	}
	for n := 1; n <= 11; n++ {
		entries[fmt.Sprintf("xl/worksheets/sheet%d.xml", n)] = fmt.Sprintf(`<?xml version="1.0"?>
<worksheet><sheetData>
<row><c t="inlineStr"><is><t>fy%d close</t></is></c></row>
</sheetData></worksheet>`, n)
	}

	got, err := extractWorkbook(buildXLSX(t, entries), "year.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for n := 1; n <= 11; n++ {
		want := fmt.Sprintf("=== Sheet: Q%d ===\nfy%d close", n, n)
		if !strings.Contains(got, want) {
			t.Fatalf("sheet %d paired with the wrong name or data:\n%s", n, got)
		}
	}
	if strings.Index(got, "fy2 close") > strings.Index(got, "fy10 close") {
		t.Fatalf("sheets out of workbook order:\n%s", got)
	}
}

func TestExtractWorkbookNotAZip(t *testing.T) {
	e := NewMimeExtractor()

	// Legacy binary .xls is not a zip container; it degrades to a placeholder.
	got, err := e.ExtractText(context.Background(), []byte("\xd0\xcf\x11\xe0 legacy xls"), mimeXLS, "old.xls")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Text extraction unavailable") {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestExtractWorkbookSkipsEmptyRows(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?>
<worksheet><sheetData>
<row><c><v></v></c><c><v></v></c></row>
<row><c><v>7</v></c></row>
</sheetData></worksheet>`,
	})

	got, err := extractWorkbook(data, "sparse.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(got, "\n")
	if lines[len(lines)-1] != "7" {
		t.Fatalf("expected only the populated row, got %q", got)
	}
}
