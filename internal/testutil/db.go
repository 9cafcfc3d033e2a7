package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/db"
)

// OpenTestDB connects to the postgres named by TEST_DB_HOST and applies the
// migrations. The test is skipped when the variable is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "docqa",
		Password: "docqa_pass",
		DBName:   "docqa_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_, _ = conn.Exec("DELETE FROM document_passages")
		_, _ = conn.Exec("DELETE FROM embedding_cache")
		_ = conn.Close()
	}
}

// UnitVector returns a vector of dim zeros with a 1 at position hot.
func UnitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot%dim] = 1
	return v
}
