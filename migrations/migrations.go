// Package migrations embeds the SQL schema so the binary and the tests
// apply the same files.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var FS embed.FS

// Up runs every *.up.sql file in name order. Statements are idempotent.
func Up(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, ".up.sql", false)
}

// Down runs every *.down.sql file in reverse name order.
func Down(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, ".down.sql", true)
}

func run(ctx context.Context, db *sql.DB, suffix string, reverse bool) error {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, f := range files {
		content, err := fs.ReadFile(FS, f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", f, err)
		}
	}
	return nil
}
