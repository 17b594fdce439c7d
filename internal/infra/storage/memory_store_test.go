package storage_test

import (
	"context"
	"testing"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIndexExhausted(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore(time2.NewMockClock(test.FixedNow))

	_, err := s.InsertMasterKeys(ctx, []*storage.MasterKey{{
		KeyType:         "btc",
		PublicKey:       "nearly-exhausted",
		DerivationIndex: storage.MaxDerivationIndex - 1,
	}})
	require.NoError(t, err)

	mk, err := s.ClaimUnassigned(ctx, "btc", "btc", "c1", true)
	require.NoError(t, err)

	idx, err := s.ReserveDerivationIndex(ctx, mk.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.MaxDerivationIndex-1, idx)

	_, err = s.ReserveDerivationIndex(ctx, mk.ID)
	assert.ErrorIs(t, err, storage.ErrIndexExhausted)
}

func TestMemoryStoreReserveUnassigned(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore(time2.NewMockClock(test.FixedNow))

	_, err := s.InsertMasterKeys(ctx, []*storage.MasterKey{{ID: "mk-1", KeyType: "btc", PublicKey: "pub"}})
	require.NoError(t, err)

	_, err = s.ReserveDerivationIndex(ctx, "mk-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	keys := s.MasterKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, test.FixedNow, keys[0].CreatedAt)
	assert.False(t, keys[0].Assigned())
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := storage.NewMemoryStore(time2.NewMockClock(test.FixedNow))
	_, err := s.ClaimUnassigned(ctx, "btc", "btc", "c1", false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryAlertLatch(t *testing.T) {
	runAlertLatchSuite(t, func(t *testing.T, fn func(storage.AlertLatch)) {
		fn(storage.NewMemoryAlertLatch(time2.NewMockClock(test.FixedNow)))
	})
}
