package apiclient

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Storage keys shared by every persistent CredentialStore implementation.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

var (
	// ErrNoCredentials indicates that no complete credential pair is stored.
	ErrNoCredentials = errors.New("credentials.not_found")
	// ErrIncompleteCredentials indicates an attempt to persist only half of a pair.
	ErrIncompleteCredentials = errors.New("credentials.incomplete")
)

// Credentials is the access/refresh token pair issued by the backend.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Complete reports whether both tokens are present.
func (credentials Credentials) Complete() bool {
	return strings.TrimSpace(credentials.AccessToken) != "" && strings.TrimSpace(credentials.RefreshToken) != ""
}

// CredentialStore is the single source of truth for the current credential pair.
// Implementations never expose a mixed state: Get returns ErrNoCredentials unless both
// tokens are stored, Set rejects incomplete pairs, and Clear removes both.
type CredentialStore interface {
	Get(ctx context.Context) (Credentials, error)
	Set(ctx context.Context, credentials Credentials) error
	Clear(ctx context.Context) error
}

// MemoryCredentialStore keeps the pair in process memory. Intended for tests and short-lived tools.
type MemoryCredentialStore struct {
	mutex       sync.RWMutex
	credentials Credentials
}

// NewMemoryCredentialStore constructs an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

// Get returns the stored pair.
func (store *MemoryCredentialStore) Get(ctx context.Context) (Credentials, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	if !store.credentials.Complete() {
		return Credentials{}, ErrNoCredentials
	}
	return store.credentials, nil
}

// Set replaces the stored pair.
func (store *MemoryCredentialStore) Set(ctx context.Context, credentials Credentials) error {
	if !credentials.Complete() {
		return ErrIncompleteCredentials
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.credentials = credentials
	return nil
}

// Clear removes the stored pair.
func (store *MemoryCredentialStore) Clear(ctx context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.credentials = Credentials{}
	return nil
}
