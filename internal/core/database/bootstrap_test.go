package db

import (
	"strings"
	"testing"
)

func TestRenderBootstrapSQLCustomDim(t *testing.T) {
	stmt, err := renderBootstrapSQL(1536)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stmt, "VECTOR(1536)") {
		t.Fatalf("embedding column not widened to 1536:\n%s", stmt)
	}
	if strings.Contains(stmt, "VECTOR(768)") {
		t.Fatalf("default width left behind:\n%s", stmt)
	}
}

func TestRenderBootstrapSQLDefaultDim(t *testing.T) {
	for _, dim := range []int{0, -1} {
		stmt, err := renderBootstrapSQL(dim)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stmt, "VECTOR(768)") {
			t.Fatalf("dim %d: expected the default column width:\n%s", dim, stmt)
		}
	}
}
