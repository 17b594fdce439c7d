package auth

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrUnauthorizedRequester = errors.New("unauthorized requester")
	ErrInvalidToken          = errors.New("invalid requester token")
)

// Credentials as presented by a caller, either in the request body or as a bearer token.
type Credentials struct {
	RequesterID     string
	RequesterSecret string
	BearerToken     string
}

func (c Credentials) Empty() bool {
	return c.RequesterID == "" && c.RequesterSecret == "" && c.BearerToken == ""
}

type Result struct {
	Token       string
	RequesterID string
	ValidUntil  time.Time
}
