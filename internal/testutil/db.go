package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/coachrag/internal/config"
	"github.com/xxxsen/coachrag/internal/db"
)

// OpenTestDB connects to a pgvector enabled postgres described by TEST_DB_*
// and applies migrations. Tests are skipped when TEST_DB_HOST is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     envOr("TEST_DB_USER", "coachrag"),
		Password: envOr("TEST_DB_PASSWORD", "coachrag_pass"),
		DBName:   envOr("TEST_DB_NAME", "coachrag_test"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
