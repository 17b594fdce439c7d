package key

import (
	"context"
	"sort"

	"github.com/kashguard/go-keypool/internal/infra/notify"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/pkg/errors"
)

// SupplyObserver 接收每次观测到的剩余数量 (metrics)
type SupplyObserver interface {
	ObservePoolSupply(keyType string, remaining int)
}

// SupplyMonitor 低库存监控
// 每个 (keyType, threshold) 对应一个锁存器：剩余数量 <= threshold 且锁存器未置位时告警，
// 补充后剩余数量回升到 threshold 以上时复位。同一次观测跨越多个阈值只告警一次 (取最小阈值)。
// 并发请求的观测可能乱序到达，锁存器按 generation 丢弃过期观测。
type SupplyMonitor struct {
	store      storage.PoolStore
	latch      storage.AlertLatch
	thresholds []int
	observer   SupplyObserver
}

// NewSupplyMonitor 创建低库存监控；observer 可以为 nil
func NewSupplyMonitor(store storage.PoolStore, latch storage.AlertLatch, thresholds []int, observer SupplyObserver) *SupplyMonitor {
	sorted := make([]int, 0, len(thresholds))
	seen := make(map[int]bool, len(thresholds))
	for _, t := range thresholds {
		if t < 0 || seen[t] {
			continue
		}
		seen[t] = true
		sorted = append(sorted, t)
	}
	sort.Ints(sorted)

	return &SupplyMonitor{
		store:      store,
		latch:      latch,
		thresholds: sorted,
		observer:   observer,
	}
}

// Observe 统计 keyType 的剩余数量并更新锁存器，需要告警时返回告警
func (m *SupplyMonitor) Observe(ctx context.Context, keyType string) (*notify.LowSupplyAlert, error) {
	supply, err := m.store.SupplySnapshot(ctx, keyType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pool supply")
	}

	remaining := supply.Unassigned
	if m.observer != nil {
		m.observer.ObservePoolSupply(keyType, remaining)
	}

	var alert *notify.LowSupplyAlert
	for _, threshold := range m.thresholds {
		fired, err := m.latch.Update(ctx, keyType, threshold, supply.Generation, remaining <= threshold)
		if err != nil {
			return nil, err
		}

		if fired && alert == nil {
			alert = &notify.LowSupplyAlert{
				KeyType:   keyType,
				Remaining: remaining,
				Threshold: threshold,
			}
		}
	}

	if alert != nil {
		util.LogFromContext(ctx).Warn().
			Str("key_type", keyType).
			Int("remaining", remaining).
			Int("threshold", alert.Threshold).
			Msg("Master key pool is running low")
	}

	return alert, nil
}
