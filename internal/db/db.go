package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	pingTimeout = 5 * time.Second
	// SchemaDimension is the width of the vector columns in the migrations.
	SchemaDimension = 768
)

// CheckDimension fails when the configured embedding width does not match
// the vector columns.
func CheckDimension(dim int) error {
	if dim != SchemaDimension {
		return fmt.Errorf("embedding dimension %d does not match schema dimension %d", dim, SchemaDimension)
	}
	return nil
}

func DSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.DBName, sslmode)
}

func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ApplyMigrations runs every embedded script in name order. Statements that
// fail because the object already exists are skipped.
func ApplyMigrations(db *sql.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	logger := logutil.GetLogger(context.Background())
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		for _, q := range splitStatements(string(content)) {
			if _, err := db.Exec(q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
		logger.Debug("migration applied", zap.String("file", file))
	}
	return nil
}

func splitStatements(content string) []string {
	var out []string
	for _, q := range strings.Split(content, ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}
