package provision

import (
	"context"

	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/infra/notify"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/pkg/errors"
)

// Recorder 记录签发结果 (metrics)
type Recorder interface {
	ObserveProvision(coin string, err error)
}

// Service 签发编排：先由 Issuer 完成持久化，再执行副作用
type Service struct {
	issuer   *key.Issuer
	executor *notify.Executor
	recorder Recorder
}

// NewService recorder 可以为 nil
func NewService(issuer *key.Issuer, executor *notify.Executor, recorder Recorder) *Service {
	return &Service{
		issuer:   issuer,
		executor: executor,
		recorder: recorder,
	}
}

// Provision 签发钱包公钥并执行副作用
// 所有者邮件失败时钱包公钥已经持久化，返回结果的同时返回 key.ErrNotificationDeliveryFailed
func (s *Service) Provision(ctx context.Context, req key.ProvisionRequest) (*key.ProvisionResult, error) {
	res, err := s.issuer.Provision(ctx, req)
	if err != nil {
		s.observe(req.Coin, err)
		return nil, err
	}

	if err := s.executor.Execute(ctx, res.Effects); err != nil {
		if errors.Is(err, notify.ErrOwnerNotificationFailed) {
			err = errors.Wrapf(key.ErrNotificationDeliveryFailed, "%v", err)
		}

		util.LogFromContext(ctx).Error().Err(err).
			Str("coin", req.Coin).
			Str("customer_id", req.CustomerID).
			Str("pub", res.WalletKey.PublicKey).
			Msg("Wallet key issued but side effects failed")

		s.observe(req.Coin, err)
		return res, err
	}

	s.observe(req.Coin, nil)
	return res, nil
}

func (s *Service) observe(coin string, err error) {
	if s.recorder != nil {
		s.recorder.ObserveProvision(coin, err)
	}
}
