package httperrors

import (
	"fmt"
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/kashguard/go-keypool/internal/types"
)

var (
	ErrBadRequestInvalidBody  = NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Invalid request body")
	ErrUnauthorizedRequester  = NewHTTPError(http.StatusUnauthorized, types.PublicHTTPErrorTypeUnauthorizedRequester, "Requester credentials are missing or invalid")
	ErrBadRequestUnsupported  = NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeUnsupportedCoin, "Coin is not supported")
	ErrServiceUnavailablePool = NewHTTPError(http.StatusServiceUnavailable, types.PublicHTTPErrorTypePoolExhausted, "No master key available for the requested coin")
	ErrServiceUnavailableIdx  = NewHTTPError(http.StatusServiceUnavailable, types.PublicHTTPErrorTypeIndexExhausted, "Master key has no derivation indices left")
	ErrInternalNotification   = NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeNotificationFailed, "Wallet key was issued but the owner could not be notified")
	ErrInternalCollision      = NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeDerivationCollision, "Derivation collision detected")
)

// HTTPError is the error type returned by handlers; it is rendered as types.PublicHTTPError.
type HTTPError struct {
	types.PublicHTTPError
	Internal       error                  `json:"-"`
	AdditionalData map[string]interface{} `json:"-"`
}

func NewHTTPError(code int, errorType types.PublicHTTPErrorType, title string) *HTTPError {
	return &HTTPError{
		PublicHTTPError: types.PublicHTTPError{
			Code:  swag.Int64(int64(code)),
			Type:  &errorType,
			Title: &title,
		},
	}
}

func NewHTTPErrorWithDetail(code int, errorType types.PublicHTTPErrorType, title string, detail string) *HTTPError {
	e := NewHTTPError(code, errorType, title)
	e.Detail = detail
	return e
}

// NewFromValidationError wraps a payload validation error into a 400 response.
func NewFromValidationError(err error) *HTTPError {
	e := NewHTTPErrorWithDetail(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Validation failed", err.Error())
	e.Internal = err
	return e
}

func (e *HTTPError) Error() string {
	var b string
	if len(e.Detail) > 0 {
		b = fmt.Sprintf("HTTPError %d (%s): %s - %s", *e.Code, *e.Type, *e.Title, e.Detail)
	} else {
		b = fmt.Sprintf("HTTPError %d (%s): %s", *e.Code, *e.Type, *e.Title)
	}

	if e.Internal != nil {
		b = fmt.Sprintf("%s, %v", b, e.Internal)
	}

	return b
}

// Wrap returns a copy of e carrying the internal cause for logging.
func (e *HTTPError) Wrap(internal error) *HTTPError {
	c := *e
	c.Internal = internal
	return &c
}
