package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// PostLookupPubPayload post lookup pub payload
type PostLookupPubPayload struct {

	// pub
	// Required: true
	// Min Length: 1
	Pub *string `json:"pub"`

	// requester Id
	RequesterID string `json:"requesterId,omitempty"`

	// requester secret
	RequesterSecret string `json:"requesterSecret,omitempty"`
}

// Validate validates this post lookup pub payload
func (m *PostLookupPubPayload) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("pub", "body", m.Pub); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("pub", "body", *m.Pub, 1); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// LookupPubResponse lookup pub response
type LookupPubResponse struct {

	// is wallet key
	// Required: true
	IsWalletKey *bool `json:"isWalletKey"`

	// pub
	// Required: true
	Pub *string `json:"pub"`
}

// Validate validates this lookup pub response
func (m *LookupPubResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("isWalletKey", "body", m.IsWalletKey); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("pub", "body", m.Pub); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// PostLookupEmailPayload post lookup email payload
type PostLookupEmailPayload struct {

	// email
	// Required: true
	// Format: email
	Email *strfmt.Email `json:"email"`

	// requester Id
	RequesterID string `json:"requesterId,omitempty"`

	// requester secret
	RequesterSecret string `json:"requesterSecret,omitempty"`
}

// Validate validates this post lookup email payload
func (m *PostLookupEmailPayload) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("email", "body", m.Email); err != nil {
		res = append(res, err)
	} else if err := validate.FormatOf("email", "body", "email", m.Email.String(), formats); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// LookupEmailResponse lookup email response
type LookupEmailResponse struct {

	// email
	// Required: true
	Email *string `json:"email"`

	// is user
	// Required: true
	IsUser *bool `json:"isUser"`
}

// Validate validates this lookup email response
func (m *LookupEmailResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("email", "body", m.Email); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("isUser", "body", m.IsUser); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}
