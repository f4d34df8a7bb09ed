package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Minimal OOXML spreadsheet structures; just enough to walk sheetData.
type xlsxWorkbook struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxSharedStrings struct {
	Items []struct {
		Text  string   `xml:"t"`
		Parts []string `xml:"r>t"`
	} `xml:"si"`
}

type xlsxWorksheet struct {
	Rows []struct {
		Cells []xlsxCell `xml:"c"`
	} `xml:"sheetData>row"`
}

type xlsxCell struct {
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline string `xml:"is>t"`
}

// extractWorkbook walks worksheets in file order; each row becomes a
// comma-joined line and each sheet gets a header line with its name. The
// OOXML container is read directly with archive/zip; legacy binary .xls is
// not a zip and lands in the corrupt-file branch, degrading to a placeholder.
func extractWorkbook(data []byte, _ string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}

	shared := readSharedStrings(zr)
	names := readSheetNames(zr)

	var sheetFiles []*zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if strings.HasPrefix(name, "xl/worksheets/sheet") && strings.HasSuffix(name, ".xml") {
			sheetFiles = append(sheetFiles, f)
		}
	}
	if len(sheetFiles) == 0 {
		return "", fmt.Errorf("%w: no worksheets found", ErrCorruptFile)
	}
	// Worksheet parts are numbered sheet1.xml, sheet2.xml, ... and workbook.xml
	// lists display names in that same order. Byte comparison would put
	// sheet10.xml before sheet2.xml and pair every later sheet with the wrong
	// name, so order by the numeric suffix.
	sort.Slice(sheetFiles, func(i, j int) bool {
		ni, iok := sheetOrdinal(sheetFiles[i].Name)
		nj, jok := sheetOrdinal(sheetFiles[j].Name)
		if iok && jok {
			return ni < nj
		}
		if iok != jok {
			return iok
		}
		return sheetFiles[i].Name < sheetFiles[j].Name
	})

	var out []string
	for i, f := range sheetFiles {
		sheetName := "Sheet" + strconv.Itoa(i+1)
		if i < len(names) {
			sheetName = names[i]
		}

		ws, err := readWorksheet(f, shared)
		if err != nil {
			continue
		}
		if len(ws) == 0 {
			continue
		}
		out = append(out, "=== Sheet: "+sheetName+" ===\n"+strings.Join(ws, "\n"))
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%w: worksheets contained no cell data", ErrCorruptFile)
	}
	return strings.Join(out, "\n\n"), nil
}

// sheetOrdinal parses N out of "xl/worksheets/sheetN.xml". The second return
// reports whether the entry follows that numbered convention.
func sheetOrdinal(name string) (int, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := strings.TrimSuffix(strings.TrimPrefix(name, "xl/worksheets/sheet"), ".xml")
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0, false
	}
	return n, true
}

func readSheetNames(zr *zip.Reader) []string {
	raw, err := readZipEntry(zr, "xl/workbook.xml")
	if err != nil {
		return nil
	}
	var wb xlsxWorkbook
	if err := xml.Unmarshal(raw, &wb); err != nil {
		return nil
	}
	names := make([]string, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		names = append(names, s.Name)
	}
	return names
}

func readSharedStrings(zr *zip.Reader) []string {
	raw, err := readZipEntry(zr, "xl/sharedStrings.xml")
	if err != nil {
		return nil
	}
	var sst xlsxSharedStrings
	if err := xml.Unmarshal(raw, &sst); err != nil {
		return nil
	}
	out := make([]string, 0, len(sst.Items))
	for _, si := range sst.Items {
		if si.Text != "" {
			out = append(out, si.Text)
			continue
		}
		out = append(out, strings.Join(si.Parts, ""))
	}
	return out
}

func readWorksheet(f *zip.File, shared []string) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var ws xlsxWorksheet
	if err := xml.Unmarshal(raw, &ws); err != nil {
		return nil, err
	}

	var lines []string
	for _, row := range ws.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			cells = append(cells, cellValue(c, shared))
		}
		line := strings.Join(cells, ",")
		if strings.Trim(line, ", ") == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func cellValue(c xlsxCell, shared []string) string {
	switch c.Type {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return c.Inline
	default:
		return c.Value
	}
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("zip entry %s not found", name)
}
