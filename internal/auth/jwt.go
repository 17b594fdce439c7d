package auth

import (
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// RequesterClaims defines the claims carried by a requester token
type RequesterClaims struct {
	jwt.RegisteredClaims
	RequesterID string `json:"requester_id"`
}

// JWTManager handles requester token generation and validation
type JWTManager struct {
	secretKey     []byte
	issuer        string
	tokenDuration time.Duration
	clock         time2.Clock
}

// NewJWTManager creates a new JWTManager
func NewJWTManager(secretKey string, issuer string, tokenDuration time.Duration, clock time2.Clock) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		tokenDuration: tokenDuration,
		clock:         clock,
	}
}

// Generate creates a new token for requesterID and returns it together with its expiry
func (m *JWTManager) Generate(requesterID string) (string, time.Time, error) {
	now := m.clock.Now()
	validUntil := now.Add(m.tokenDuration)

	claims := RequesterClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(validUntil),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   requesterID,
		},
		RequesterID: requesterID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign token")
	}

	return signed, validUntil, nil
}

// Validate validates the token and returns its claims
func (m *JWTManager) Validate(tokenString string) (*RequesterClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RequesterClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.clock.Now),
	)

	if err != nil {
		return nil, errors.Wrapf(ErrInvalidToken, "%v", err)
	}

	claims, ok := token.Claims.(*RequesterClaims)
	if !ok || !token.Valid || claims.RequesterID == "" {
		return nil, errors.Wrap(ErrInvalidToken, "invalid token claims")
	}

	return claims, nil
}
