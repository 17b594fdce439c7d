package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// PostProvisionWalletKeyPayload post provision wallet key payload
type PostProvisionWalletKeyPayload struct {

	// Ticker of a configured coin (e.g. btc, eth, xlm)
	// Required: true
	// Min Length: 1
	Coin *string `json:"coin"`

	// Opaque metadata echoed back in the response
	Custom map[string]interface{} `json:"custom,omitempty"`

	// Opaque identifier of the requesting customer
	// Required: true
	// Min Length: 1
	CustomerID *string `json:"customerId"`

	// Suppresses the owner notification mail for this request
	DisableNotificationEmail bool `json:"disableNotificationEmail,omitempty"`

	// Webhook endpoint notified about the issued key
	// Format: uri
	NotificationURL strfmt.URI `json:"notificationURL,omitempty"`

	// requester Id
	RequesterID string `json:"requesterId,omitempty"`

	// requester secret
	RequesterSecret string `json:"requesterSecret,omitempty"`

	// Email address of the wallet owner
	// Required: true
	// Format: email
	UserEmail *strfmt.Email `json:"userEmail"`
}

// Validate validates this post provision wallet key payload
func (m *PostProvisionWalletKeyPayload) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("coin", "body", m.Coin); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("coin", "body", *m.Coin, 1); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("customerId", "body", m.CustomerID); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("customerId", "body", *m.CustomerID, 1); err != nil {
		res = append(res, err)
	}

	if m.NotificationURL != "" {
		if err := validate.FormatOf("notificationURL", "body", "uri", m.NotificationURL.String(), formats); err != nil {
			res = append(res, err)
		}
	}

	if err := validate.Required("userEmail", "body", m.UserEmail); err != nil {
		res = append(res, err)
	} else if err := validate.FormatOf("userEmail", "body", "email", m.UserEmail.String(), formats); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// ProvisionWalletKeyResponse provision wallet key response
type ProvisionWalletKeyResponse struct {

	// custom
	Custom map[string]interface{} `json:"custom,omitempty"`

	// Public key of the master key the wallet key belongs to
	// Required: true
	MasterKey *string `json:"masterKey"`

	// Proof-of-possession signature of the master key, if any
	MasterKeySig string `json:"masterKeySig,omitempty"`

	// Derivation index used for the wallet key
	// Required: true
	// Minimum: 0
	Path *int64 `json:"path"`

	// The issued (derived or assigned) public key
	// Required: true
	Pub *string `json:"pub"`

	// user email
	// Required: true
	UserEmail *string `json:"userEmail"`
}

// Validate validates this provision wallet key response
func (m *ProvisionWalletKeyResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("masterKey", "body", m.MasterKey); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("path", "body", m.Path); err != nil {
		res = append(res, err)
	} else if err := validate.MinimumInt("path", "body", *m.Path, 0, false); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("pub", "body", m.Pub); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("userEmail", "body", m.UserEmail); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}
