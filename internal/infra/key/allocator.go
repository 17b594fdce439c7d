package key

import (
	"context"

	"github.com/kashguard/go-keypool/internal/infra/notify"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/pkg/errors"
)

// Allocation 主密钥分配结果
type Allocation struct {
	MasterKey *storage.MasterKey
	// Fresh 本次请求新领取的主密钥 (否则为复用已有分配)
	Fresh bool
	// Alert 领取后触发的低库存告警，可能为 nil
	Alert *notify.LowSupplyAlert
}

// Allocator 主密钥分配策略：领取或复用
type Allocator struct {
	store   storage.PoolStore
	monitor *SupplyMonitor
}

// NewAllocator 创建分配器；monitor 为 nil 时不做低库存告警
func NewAllocator(store storage.PoolStore, monitor *SupplyMonitor) *Allocator {
	return &Allocator{store: store, monitor: monitor}
}

// SelectMasterKey 为 (coin, customerID) 选择主密钥
// alwaysFresh 为 true 时总是领取新的主密钥；否则优先复用已有的独占分配
func (a *Allocator) SelectMasterKey(ctx context.Context, class CoinClass, customerID string, alwaysFresh bool) (*Allocation, error) {
	coin := class.Coin()
	log := util.LogFromContext(ctx).With().
		Str("coin", coin.Ticker).
		Str("key_type", coin.KeyType).
		Str("customer_id", customerID).
		Logger()

	if !alwaysFresh {
		mk, err := a.store.FindAssigned(ctx, coin.Ticker, customerID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to find assigned master key")
		}
		if mk != nil {
			log.Debug().Str("master_key_id", mk.ID).Msg("Reusing assigned master key")
			return &Allocation{MasterKey: mk}, nil
		}
	}

	mk, err := a.store.ClaimUnassigned(ctx, coin.KeyType, coin.Ticker, customerID, !alwaysFresh)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Error().Msg("Master key pool exhausted")
		return nil, errors.Wrapf(ErrPoolExhausted, "key type %s", coin.KeyType)
	case errors.Is(err, storage.ErrAssignmentConflict):
		// 并发的首次请求已经完成分配，复用胜出者的主密钥
		winner, findErr := a.store.FindAssigned(ctx, coin.Ticker, customerID)
		if findErr != nil {
			return nil, errors.Wrap(findErr, "failed to load concurrent assignment")
		}
		if winner == nil {
			return nil, errors.Wrap(err, "concurrent assignment vanished")
		}
		log.Debug().Str("master_key_id", winner.ID).Msg("Lost assignment race, reusing winner's master key")
		return &Allocation{MasterKey: winner}, nil
	case err != nil:
		return nil, errors.Wrap(err, "failed to claim master key")
	}

	log.Info().Str("master_key_id", mk.ID).Bool("exclusive", mk.Exclusive).Msg("Claimed master key")

	allocation := &Allocation{MasterKey: mk, Fresh: true}

	if a.monitor != nil {
		// 低库存告警只是提示，失败不影响分配
		alert, err := a.monitor.Observe(ctx, coin.KeyType)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to observe pool supply")
		}
		allocation.Alert = alert
	}

	return allocation, nil
}
