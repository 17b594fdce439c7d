package metrics

import (
	"github.com/kashguard/go-keypool/internal/infra/key"
)

var failureReasons = []struct {
	err    error
	reason string
}{
	{key.ErrValidation, ReasonValidation},
	{key.ErrUnsupportedCoin, ReasonUnsupportedCoin},
	{key.ErrPoolExhausted, ReasonPoolExhausted},
	{key.ErrDerivationIndexExhausted, ReasonIndexExhausted},
	{key.ErrNotificationDeliveryFailed, ReasonNotification},
	{key.ErrDerivationCollision, ReasonCollision},
}
