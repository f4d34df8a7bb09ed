package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// defaultEmbedDim is the text-embedding-004 vector width the checked-in DDL
// carries; EMBED_DIM overrides it for models with a different dimension.
const defaultEmbedDim = 768

// EnsureBootstrapped applies scripts/initdb.sql once per database. The
// advisor_meta table records the applied schema version. embedDim sets the
// width of the chunk embedding column; values <= 0 fall back to the default.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, embedDim int) error {
	bootCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(bootCtx, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'advisor_meta'
		)`).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	if !exists {
		return runBootstrap(bootCtx, db, embedDim)
	}

	var hasVersion bool
	if err := db.QueryRowContext(bootCtx,
		`SELECT EXISTS (SELECT 1 FROM advisor_meta WHERE version = $1)`, schemaVersion).
		Scan(&hasVersion); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		return runBootstrap(bootCtx, db, embedDim)
	}

	return nil
}

func runBootstrap(ctx context.Context, db *sql.DB, embedDim int) error {
	stmt, err := renderBootstrapSQL(embedDim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}

// renderBootstrapSQL loads the embedded DDL and rewrites the embedding column
// width to embedDim.
func renderBootstrapSQL(embedDim int) (string, error) {
	raw, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	if embedDim <= 0 {
		embedDim = defaultEmbedDim
	}
	return strings.ReplaceAll(string(raw),
		fmt.Sprintf("VECTOR(%d)", defaultEmbedDim),
		fmt.Sprintf("VECTOR(%d)", embedDim)), nil
}
