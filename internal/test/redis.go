package test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/kashguard/go-keypool/internal/util"
	"github.com/redis/go-redis/v9"
)

// WithTestRedis runs closure against a flushed redis database selected by
// REDIS_TEST_DB (default 15). The test is skipped when REDIS_TEST_ADDR is unset.
func WithTestRedis(t *testing.T, closure func(client *redis.Client)) {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("REDIS_TEST_ADDR"))
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping redis test")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   util.GetEnvAsInt("REDIS_TEST_DB", 15),
	})
	defer client.Close()

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test redis: %v", err)
	}
	defer client.FlushDB(ctx)

	closure(client)
}
