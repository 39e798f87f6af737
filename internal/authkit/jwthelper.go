package authkit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errEmptySubject       = errors.New("subject must be non-empty")
	errInvalidAccessToken = errors.New("jwt.parse.invalid_token")
)

// AccessClaims are embedded in the bearer access token.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	jwt.RegisteredClaims
}

// MintAccessToken creates a signed HS256 access token valid from clock.Now() for ttl.
func MintAccessToken(clock Clock, applicationUserID string, userEmail string, issuer string, signingKey []byte, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(applicationUserID) == "" {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w", errEmptySubject)
	}
	issuedAt := clock.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		UserID:    applicationUserID,
		UserEmail: userEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   applicationUserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies signature, issuer and expiry against clock.
func ParseAccessToken(configuration ServerConfig, clock Clock, tokenText string) (*AccessClaims, error) {
	parsedToken, parseErr := jwt.ParseWithClaims(tokenText, &AccessClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return configuration.SigningKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(configuration.Issuer),
		jwt.WithTimeFunc(clock.Now),
		jwt.WithExpirationRequired(),
	)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidAccessToken, parseErr)
	}
	claims, ok := parsedToken.Claims.(*AccessClaims)
	if !ok || !parsedToken.Valid || claims.UserID == "" {
		return nil, errInvalidAccessToken
	}
	return claims, nil
}
