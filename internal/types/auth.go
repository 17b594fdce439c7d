package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// PostRequesterTokenPayload post requester token payload
type PostRequesterTokenPayload struct {

	// requester Id
	// Required: true
	// Min Length: 1
	RequesterID *string `json:"requesterId"`

	// requester secret
	// Required: true
	// Min Length: 1
	RequesterSecret *string `json:"requesterSecret"`
}

// Validate validates this post requester token payload
func (m *PostRequesterTokenPayload) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("requesterId", "body", m.RequesterID); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("requesterId", "body", *m.RequesterID, 1); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("requesterSecret", "body", m.RequesterSecret); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("requesterSecret", "body", *m.RequesterSecret, 1); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// RequesterTokenResponse requester token response
type RequesterTokenResponse struct {

	// access token
	// Required: true
	AccessToken *string `json:"access_token"`

	// expires in (seconds)
	// Required: true
	ExpiresIn *int64 `json:"expires_in"`

	// token type
	// Required: true
	TokenType *string `json:"token_type"`

	// valid until
	// Required: true
	// Format: date-time
	ValidUntil *strfmt.DateTime `json:"valid_until"`
}

// Validate validates this requester token response
func (m *RequesterTokenResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("access_token", "body", m.AccessToken); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("expires_in", "body", m.ExpiresIn); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("token_type", "body", m.TokenType); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("valid_until", "body", m.ValidUntil); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}
