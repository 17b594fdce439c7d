package walletkeys

import (
	"github.com/kashguard/go-keypool/internal/api/httperrors"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/pkg/errors"
)

var provisionErrors = []struct {
	target error
	http   *httperrors.HTTPError
}{
	{key.ErrUnsupportedCoin, httperrors.ErrBadRequestUnsupported},
	{key.ErrPoolExhausted, httperrors.ErrServiceUnavailablePool},
	{key.ErrDerivationIndexExhausted, httperrors.ErrServiceUnavailableIdx},
	{key.ErrNotificationDeliveryFailed, httperrors.ErrInternalNotification},
	{key.ErrDerivationCollision, httperrors.ErrInternalCollision},
}

// toHTTPError maps engine errors onto their public representation; unknown errors are left to the error handler.
func toHTTPError(err error) error {
	if errors.Is(err, key.ErrValidation) {
		return httperrors.NewFromValidationError(err)
	}

	for _, e := range provisionErrors {
		if errors.Is(err, e.target) {
			return e.http.Wrap(err)
		}
	}

	return err
}
