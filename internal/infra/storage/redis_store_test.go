package storage_test

import (
	"testing"

	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/test"
	"github.com/redis/go-redis/v9"
)

func TestRedisAlertLatch(t *testing.T) {
	runAlertLatchSuite(t, func(t *testing.T, fn func(storage.AlertLatch)) {
		test.WithTestRedis(t, func(client *redis.Client) {
			fn(storage.NewRedisAlertLatch(client))
		})
	})
}
