package key

import "github.com/pkg/errors"

var (
	ErrValidation                 = errors.New("invalid provisioning request")
	ErrUnsupportedCoin            = errors.New("coin is not supported")
	ErrPoolExhausted              = errors.New("no unassigned master key available")
	ErrNotificationDeliveryFailed = errors.New("owner notification could not be delivered")
	// ErrDerivationCollision 同一主密钥下派生路径重复，属于数据完整性故障，不重试
	ErrDerivationCollision      = errors.New("derivation collision")
	ErrDerivationIndexExhausted = errors.New("derivation index exhausted for master key")
	ErrInvalidMasterKey         = errors.New("invalid master key")
)
