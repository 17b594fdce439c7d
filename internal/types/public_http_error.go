package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// PublicHTTPErrorType the type of the error (machine readable)
type PublicHTTPErrorType string

const (
	PublicHTTPErrorTypeGeneric               PublicHTTPErrorType = "generic"
	PublicHTTPErrorTypeUnsupportedCoin       PublicHTTPErrorType = "UNSUPPORTED_COIN"
	PublicHTTPErrorTypeUnauthorizedRequester PublicHTTPErrorType = "UNAUTHORIZED_REQUESTER"
	PublicHTTPErrorTypePoolExhausted         PublicHTTPErrorType = "POOL_EXHAUSTED"
	PublicHTTPErrorTypeNotificationFailed    PublicHTTPErrorType = "NOTIFICATION_DELIVERY_FAILED"
	PublicHTTPErrorTypeDerivationCollision   PublicHTTPErrorType = "DERIVATION_COLLISION"
	PublicHTTPErrorTypeIndexExhausted        PublicHTTPErrorType = "DERIVATION_INDEX_EXHAUSTED"
)

// PublicHTTPError public Http error
type PublicHTTPError struct {

	// HTTP status code returned for the error
	// Required: true
	Code *int64 `json:"status"`

	// More detailed, human-readable, optional explanation of the error
	Detail string `json:"detail,omitempty"`

	// Short, human-readable description of the error
	// Required: true
	Title *string `json:"title"`

	// type
	// Required: true
	Type *PublicHTTPErrorType `json:"type"`
}

// Validate validates this public Http error
func (m *PublicHTTPError) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("status", "body", m.Code); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("title", "body", m.Title); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("type", "body", m.Type); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}
