package test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/kashguard/go-keypool/internal/persistence"
	"github.com/kashguard/go-keypool/internal/util"

	// postgres driver
	_ "github.com/lib/pq"
)

// WithTestDatabase runs closure against an isolated, fully migrated schema.
// PSQL_TEST_DSN must hold a key/value lib/pq connection string; the test is
// skipped when it is unset.
func WithTestDatabase(t *testing.T, closure func(db *sql.DB)) {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("PSQL_TEST_DSN"))
	if dsn == "" {
		t.Skip("PSQL_TEST_DSN not set, skipping database test")
	}

	ctx := context.Background()

	admin, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer admin.Close()

	suffix, err := util.GenerateRandomHexString(8)
	if err != nil {
		t.Fatalf("Failed to generate test schema name: %v", err)
	}

	schema := fmt.Sprintf("test_%s", suffix)
	if _, err := admin.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	defer func() {
		if _, err := admin.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema)); err != nil {
			t.Errorf("Failed to drop test schema %s: %v", schema, err)
		}
	}()

	db, err := sql.Open("postgres", fmt.Sprintf("%s search_path=%s", dsn, schema))
	if err != nil {
		t.Fatalf("Failed to open test schema: %v", err)
	}
	defer db.Close()

	if _, err := persistence.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test schema: %v", err)
	}

	closure(db)
}
