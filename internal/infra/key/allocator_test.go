package key_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/infra/notify"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"
)

func TestResolveCoinClass(t *testing.T) {
	coins := testCoins(t)

	class, err := key.ResolveCoinClass(coins, "BTC")
	require.NoError(t, err)
	assert.IsType(t, key.Derivable{}, class)
	assert.Equal(t, "btc", class.Coin().KeyType)

	class, err = key.ResolveCoinClass(coins, "xlm")
	require.NoError(t, err)
	assert.IsType(t, key.SingleUse{}, class)
	assert.Equal(t, config.CurveEd25519, class.Coin().Curve)

	_, err = key.ResolveCoinClass(coins, "ltc")
	assert.ErrorIs(t, err, key.ErrUnsupportedCoin)
}

func TestClaimExactlyPoolSize(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		poolSize := rapid.IntRange(0, 8).Draw(t, "pool_size")
		requests := rapid.IntRange(0, 16).Draw(t, "requests")
		alwaysFresh := rapid.Bool().Draw(t, "always_fresh")

		clock := time2.NewMockClock(test.FixedNow)
		store := storage.NewMemoryStore(clock)
		allocator := key.NewAllocator(store, nil)

		keys := make([]*storage.MasterKey, 0, poolSize)
		for i := 0; i < poolSize; i++ {
			keys = append(keys, &storage.MasterKey{KeyType: "btc", PublicKey: fmt.Sprintf("mk-%d", i)})
		}
		if _, err := store.InsertMasterKeys(context.Background(), keys); err != nil {
			t.Fatalf("insert: %v", err)
		}

		class := key.Derivable{Entry: config.Coin{Ticker: "btc", KeyType: "btc", Class: config.CoinClassDerivable}}

		ids := make([]string, requests)
		errs := make([]error, requests)

		var g errgroup.Group
		for i := 0; i < requests; i++ {
			i := i
			g.Go(func() error {
				alloc, err := allocator.SelectMasterKey(context.Background(), class, fmt.Sprintf("customer-%d", i), alwaysFresh)
				errs[i] = err
				if err == nil {
					ids[i] = alloc.MasterKey.ID
				}
				return nil
			})
		}
		_ = g.Wait()

		claimed := make(map[string]bool)
		exhausted := 0
		for i := 0; i < requests; i++ {
			if errs[i] != nil {
				if !errors.Is(errs[i], key.ErrPoolExhausted) {
					t.Fatalf("unexpected error: %v", errs[i])
				}
				exhausted++
				continue
			}
			if claimed[ids[i]] {
				t.Fatalf("master key %s returned twice", ids[i])
			}
			claimed[ids[i]] = true
		}

		want := requests
		if poolSize < requests {
			want = poolSize
		}
		if len(claimed) != want {
			t.Fatalf("got %d successful claims, want %d", len(claimed), want)
		}
		if exhausted != requests-want {
			t.Fatalf("got %d exhausted, want %d", exhausted, requests-want)
		}
	})
}

func TestSupplyAlertOncePerCrossing(t *testing.T) {
	ctx := context.Background()
	clock := time2.NewMockClock(test.FixedNow)
	store := storage.NewMemoryStore(clock)
	monitor := key.NewSupplyMonitor(store, storage.NewMemoryAlertLatch(clock), []int{10, 5, 5, -1}, nil)
	allocator := key.NewAllocator(store, monitor)

	fill := func(prefix string, n int) {
		keys := make([]*storage.MasterKey, 0, n)
		for i := 0; i < n; i++ {
			keys = append(keys, &storage.MasterKey{KeyType: "xlm", PublicKey: fmt.Sprintf("%s-%d", prefix, i)})
		}
		_, err := store.InsertMasterKeys(ctx, keys)
		require.NoError(t, err)
	}
	fill("a", 12)

	class := key.SingleUse{Entry: config.Coin{Ticker: "xlm", KeyType: "xlm", Class: config.CoinClassSingleUse}}

	var alerts []int
	for i := 0; i < 12; i++ {
		alloc, err := allocator.SelectMasterKey(ctx, class, "C1", true)
		require.NoError(t, err)
		if alloc.Alert != nil {
			assert.Equal(t, "xlm", alloc.Alert.KeyType)
			assert.Equal(t, alloc.Alert.Threshold, alloc.Alert.Remaining)
			alerts = append(alerts, alloc.Alert.Remaining)
		}
	}
	assert.Equal(t, []int{10, 5}, alerts)

	// refilling above every threshold re-arms the alerts
	fill("b", 12)
	alerts = nil
	for i := 0; i < 12; i++ {
		alloc, err := allocator.SelectMasterKey(ctx, class, "C1", true)
		require.NoError(t, err)
		if alloc.Alert != nil {
			alerts = append(alerts, alloc.Alert.Threshold)
		}
	}
	assert.Equal(t, []int{10, 5}, alerts)
}

func TestSupplyAlertJumpFiresSmallestThreshold(t *testing.T) {
	ctx := context.Background()
	clock := time2.NewMockClock(test.FixedNow)
	store := storage.NewMemoryStore(clock)
	monitor := key.NewSupplyMonitor(store, storage.NewMemoryAlertLatch(clock), []int{100, 50, 10}, nil)

	_, err := store.InsertMasterKeys(ctx, []*storage.MasterKey{{KeyType: "btc", PublicKey: "only"}})
	require.NoError(t, err)

	alert, err := monitor.Observe(ctx, "btc")
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 10, alert.Threshold)
	assert.Equal(t, 1, alert.Remaining)

	alert, err = monitor.Observe(ctx, "btc")
	require.NoError(t, err)
	assert.Nil(t, alert)
}

// scriptedSupply hands out queued snapshots in call order.
type scriptedSupply struct {
	storage.PoolStore
	mu        sync.Mutex
	snapshots []storage.PoolSupply
}

func (s *scriptedSupply) SupplySnapshot(_ context.Context, _ string) (storage.PoolSupply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshots[0]
	s.snapshots = s.snapshots[1:]
	return next, nil
}

// gatedLatch holds back observations above the threshold until released.
type gatedLatch struct {
	storage.AlertLatch
	entered chan struct{}
	release chan struct{}
}

func (g *gatedLatch) Update(ctx context.Context, keyType string, threshold int, generation int64, low bool) (bool, error) {
	if !low {
		close(g.entered)
		<-g.release
	}
	return g.AlertLatch.Update(ctx, keyType, threshold, generation, low)
}

func TestSupplyAlertIgnoresStaleCount(t *testing.T) {
	ctx := context.Background()
	store := &scriptedSupply{snapshots: []storage.PoolSupply{
		{Unassigned: 11, Generation: 40},
		{Unassigned: 10, Generation: 40},
		{Unassigned: 9, Generation: 40},
	}}
	latch := &gatedLatch{
		AlertLatch: storage.NewMemoryAlertLatch(time2.NewMockClock(test.FixedNow)),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	monitor := key.NewSupplyMonitor(store, latch, []int{10}, nil)

	// A counts 11 but applies it only after B has armed the latch at 10
	staleDone := make(chan *notify.LowSupplyAlert, 1)
	go func() {
		alert, err := monitor.Observe(ctx, "btc")
		assert.NoError(t, err)
		staleDone <- alert
	}()
	<-latch.entered

	alertB, err := monitor.Observe(ctx, "btc")
	require.NoError(t, err)
	require.NotNil(t, alertB)
	assert.Equal(t, 10, alertB.Remaining)

	close(latch.release)
	assert.Nil(t, <-staleDone)

	alertC, err := monitor.Observe(ctx, "btc")
	require.NoError(t, err)
	assert.Nil(t, alertC, "one crossing must alert once")
}

func TestSupplyAlertConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	clock := time2.NewMockClock(test.FixedNow)
	store := storage.NewMemoryStore(clock)
	monitor := key.NewSupplyMonitor(store, storage.NewMemoryAlertLatch(clock), []int{10, 5}, nil)
	allocator := key.NewAllocator(store, monitor)

	keys := make([]*storage.MasterKey, 0, 20)
	for i := 0; i < 20; i++ {
		keys = append(keys, &storage.MasterKey{KeyType: "xlm", PublicKey: fmt.Sprintf("mk-%d", i)})
	}
	_, err := store.InsertMasterKeys(ctx, keys)
	require.NoError(t, err)

	class := key.SingleUse{Entry: config.Coin{Ticker: "xlm", KeyType: "xlm", Class: config.CoinClassSingleUse}}

	var (
		mu     sync.Mutex
		alerts = map[int]int{}
	)
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			alloc, err := allocator.SelectMasterKey(ctx, class, "C1", true)
			if err != nil {
				return err
			}
			if alloc.Alert != nil {
				mu.Lock()
				alerts[alloc.Alert.Threshold]++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for threshold, n := range alerts {
		assert.Equal(t, 1, n, "threshold %d alerted %d times", threshold, n)
	}
}

type recordingObserver struct {
	observed map[string]int
}

func (r *recordingObserver) ObservePoolSupply(keyType string, remaining int) {
	r.observed[keyType] = remaining
}

func TestSupplyMonitorObserver(t *testing.T) {
	ctx := context.Background()
	clock := time2.NewMockClock(test.FixedNow)
	store := storage.NewMemoryStore(clock)
	obs := &recordingObserver{observed: map[string]int{}}
	monitor := key.NewSupplyMonitor(store, storage.NewMemoryAlertLatch(clock), nil, obs)

	_, err := store.InsertMasterKeys(ctx, []*storage.MasterKey{{KeyType: "btc", PublicKey: "a"}, {KeyType: "btc", PublicKey: "b"}})
	require.NoError(t, err)

	alert, err := monitor.Observe(ctx, "btc")
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, 2, obs.observed["btc"])
}
