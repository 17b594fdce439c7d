package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"strings"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// RequesterAuthenticator checks requester credentials before any wallet key operation.
// Configured secrets are stretched with scrypt once at startup, presented secrets are
// stretched with the same salt and compared in constant time.
type RequesterAuthenticator struct {
	required bool
	salt     []byte
	secrets  map[string][]byte
	tokens   *JWTManager
}

func NewRequesterAuthenticator(cfg config.RequesterAuth, clock time2.Clock) (*RequesterAuthenticator, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	a := &RequesterAuthenticator{
		required: cfg.Required,
		salt:     salt,
		secrets:  make(map[string][]byte, len(cfg.Credentials)),
	}

	for id, secret := range cfg.Credentials {
		hashed, err := a.stretch(secret)
		if err != nil {
			return nil, err
		}
		a.secrets[id] = hashed
	}

	if cfg.TokenSecret != "" {
		a.tokens = NewJWTManager(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL, clock)
	}

	if a.required && len(a.secrets) == 0 {
		util.LogFromContext(context.Background()).Warn().Msg("Requester auth is required but no credentials are configured, every request will be rejected")
	}

	return a, nil
}

func (a *RequesterAuthenticator) Required() bool {
	return a.required
}

// Authenticate returns the authenticated requester id. When requester auth is not
// required, requests without credentials pass with an empty id.
func (a *RequesterAuthenticator) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	if !a.required && creds.Empty() {
		return "", nil
	}

	if creds.BearerToken != "" {
		if a.tokens == nil {
			return "", errors.Wrap(ErrUnauthorizedRequester, "requester tokens are disabled")
		}

		claims, err := a.tokens.Validate(creds.BearerToken)
		if err != nil {
			util.LogFromContext(ctx).Debug().Err(err).Msg("Rejected requester token")
			return "", errors.Wrapf(ErrUnauthorizedRequester, "%v", err)
		}

		return claims.RequesterID, nil
	}

	if err := a.verifySecret(creds.RequesterID, creds.RequesterSecret); err != nil {
		util.LogFromContext(ctx).Debug().Str("requester_id", creds.RequesterID).Msg("Rejected requester credentials")
		return "", err
	}

	return creds.RequesterID, nil
}

// IssueToken exchanges requester credentials for a short lived bearer token.
func (a *RequesterAuthenticator) IssueToken(ctx context.Context, requesterID, secret string) (*Result, error) {
	if a.tokens == nil {
		return nil, errors.Wrap(ErrUnauthorizedRequester, "requester tokens are disabled")
	}

	if err := a.verifySecret(requesterID, secret); err != nil {
		util.LogFromContext(ctx).Debug().Str("requester_id", requesterID).Msg("Rejected token request")
		return nil, err
	}

	token, validUntil, err := a.tokens.Generate(requesterID)
	if err != nil {
		return nil, err
	}

	return &Result{
		Token:       token,
		RequesterID: requesterID,
		ValidUntil:  validUntil,
	}, nil
}

func (a *RequesterAuthenticator) verifySecret(requesterID, secret string) error {
	if strings.TrimSpace(requesterID) == "" || secret == "" {
		return errors.Wrap(ErrUnauthorizedRequester, "requester credentials missing")
	}

	expected, ok := a.secrets[requesterID]
	if !ok {
		return errors.Wrap(ErrUnauthorizedRequester, "unknown requester")
	}

	presented, err := a.stretch(secret)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare(expected, presented) != 1 {
		return errors.Wrap(ErrUnauthorizedRequester, "requester secret mismatch")
	}

	return nil
}

func (a *RequesterAuthenticator) stretch(secret string) ([]byte, error) {
	key, err := scrypt.Key([]byte(secret), a.salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stretch requester secret")
	}
	return key, nil
}
