package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// Migrate applies each embedded migration at most once.
func Migrate(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("ensuring migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		res, err := db.Query(ctx, `SELECT name FROM `+migrationTable+` WHERE name = $1`, name)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if res.RowCount > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("applying migration %s: %w", name, err)
			}
		}

		_, err = db.Exec(ctx, `INSERT INTO `+migrationTable+` (name, applied_at) VALUES ($1, $2)`,
			name, time.Now().UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

func splitStatements(content string) []string {
	var stmts []string
	for _, s := range strings.Split(content, ";\n") {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
