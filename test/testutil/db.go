package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/papersearch/internal/config"
	"github.com/xxxsen/papersearch/internal/db"
)

// OpenTestDB connects to the pgvector instance named by TEST_DB_HOST and
// empties the item tables. Tests are skipped when it is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "papersearch",
		Password: "papersearch_pass",
		DBName:   "papersearch_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := conn.Exec(`TRUNCATE papers, workshops, embedding_cache RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// UnitVector returns a 768 dimension vector with 1 at position i.
func UnitVector(i int) []float32 {
	v := make([]float32, 768)
	v[i%768] = 1
	return v
}
