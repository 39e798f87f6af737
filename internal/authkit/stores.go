package authkit

import (
	"context"
	"errors"
)

var (
	// ErrUserExists indicates a signup for an email that is already registered.
	ErrUserExists = errors.New("user_store.exists")
	// ErrInvalidUserCredentials indicates an unknown email or a wrong password.
	ErrInvalidUserCredentials = errors.New("user_store.invalid_credentials")
	// ErrUserNotFound indicates no user matched the identifier.
	ErrUserNotFound = errors.New("user_store.not_found")

	// ErrRefreshTokenNotFound indicates no refresh token matched the provided identifier.
	ErrRefreshTokenNotFound = errors.New("refresh_store.not_found")
	// ErrRefreshTokenRevoked indicates the refresh token has been revoked.
	ErrRefreshTokenRevoked = errors.New("refresh_store.revoked")
	// ErrRefreshTokenExpired indicates the refresh token has exceeded its expiry.
	ErrRefreshTokenExpired = errors.New("refresh_store.expired")
	// ErrRefreshTokenAlreadyRevoked signals an idempotent revoke call on an already-revoked token.
	ErrRefreshTokenAlreadyRevoked = errors.New("refresh_store.already_revoked")
	// ErrRefreshTokenEmptyOpaque indicates that the provided opaque token text is empty.
	ErrRefreshTokenEmptyOpaque = errors.New("refresh_store.empty_token")
)

// UserRecord is the identity carried in tokens and auth responses.
type UserRecord struct {
	ID       int64
	Email    string
	Name     string
	Provider string
}

// UserStore registers and authenticates email users.
type UserStore interface {
	CreateUser(ctx context.Context, email string, password string, name string) (UserRecord, error)
	Authenticate(ctx context.Context, email string, password string) (UserRecord, error)
	GetUser(ctx context.Context, applicationUserID string) (UserRecord, error)
}

// RefreshTokenStore manages long-lived rotating refresh tokens.
type RefreshTokenStore interface {
	Issue(ctx context.Context, applicationUserID string, expiresUnix int64, previousTokenID string) (tokenID string, tokenOpaque string, err error)
	Validate(ctx context.Context, tokenOpaque string) (applicationUserID string, tokenID string, expiresUnix int64, err error)
	Revoke(ctx context.Context, tokenID string) error
}
