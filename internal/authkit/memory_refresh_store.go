package authkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryRefreshTokenStore is an in-memory store intended for tests and dev.
type MemoryRefreshTokenStore struct {
	mutex  sync.Mutex
	clock  Clock
	byID   map[string]*memoryRefreshRecord
	byHash map[string]string
}

type memoryRefreshRecord struct {
	tokenID         string
	userID          string
	expiresUnix     int64
	revokedAtUnix   int64
	previousTokenID string
	issuedAtUnix    int64
}

// NewMemoryRefreshTokenStore creates a new in-memory token store. A nil clock reads the wall clock.
func NewMemoryRefreshTokenStore(clock Clock) *MemoryRefreshTokenStore {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &MemoryRefreshTokenStore{
		clock:  clock,
		byID:   make(map[string]*memoryRefreshRecord),
		byHash: make(map[string]string),
	}
}

// Issue creates a new token, optionally linked to a previous token.
func (store *MemoryRefreshTokenStore) Issue(ctx context.Context, applicationUserID string, expiresUnix int64, previousTokenID string) (string, string, error) {
	opaque, hashValue, err := generateRefreshOpaque()
	if err != nil {
		return "", "", fmt.Errorf("refresh_store.issue.memory: %w", err)
	}
	tokenID := newRefreshTokenID()

	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.byID[tokenID] = &memoryRefreshRecord{
		tokenID:         tokenID,
		userID:          applicationUserID,
		expiresUnix:     expiresUnix,
		previousTokenID: previousTokenID,
		issuedAtUnix:    store.clock.Now().Unix(),
	}
	store.byHash[hashValue] = tokenID
	return tokenID, opaque, nil
}

// Validate checks the opaque token and returns user, token id, and expiry.
func (store *MemoryRefreshTokenStore) Validate(ctx context.Context, tokenOpaque string) (string, string, int64, error) {
	if strings.TrimSpace(tokenOpaque) == "" {
		return "", "", 0, fmt.Errorf("refresh_store.validate.memory: %w", ErrRefreshTokenEmptyOpaque)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record := store.byID[store.byHash[hashOpaque(tokenOpaque)]]
	switch {
	case record == nil:
		return "", "", 0, fmt.Errorf("refresh_store.validate.memory: %w", ErrRefreshTokenNotFound)
	case record.revokedAtUnix != 0:
		return "", "", 0, fmt.Errorf("refresh_store.validate.memory: %w", ErrRefreshTokenRevoked)
	case time.Unix(record.expiresUnix, 0).Before(store.clock.Now()):
		return "", "", 0, fmt.Errorf("refresh_store.validate.memory: %w", ErrRefreshTokenExpired)
	}
	return record.userID, record.tokenID, record.expiresUnix, nil
}

// Revoke marks a token as revoked.
func (store *MemoryRefreshTokenStore) Revoke(ctx context.Context, tokenID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record := store.byID[tokenID]
	if record == nil {
		return fmt.Errorf("refresh_store.revoke.memory: %w", ErrRefreshTokenNotFound)
	}
	if record.revokedAtUnix != 0 {
		return fmt.Errorf("refresh_store.revoke.memory: %w", ErrRefreshTokenAlreadyRevoked)
	}
	record.revokedAtUnix = store.clock.Now().Unix()
	return nil
}

// Lineage returns the chain of token ids from tokenID back to the first token of its session.
func (store *MemoryRefreshTokenStore) Lineage(tokenID string) []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	var chain []string
	for current := store.byID[tokenID]; current != nil; current = store.byID[current.previousTokenID] {
		chain = append(chain, current.tokenID)
	}
	return chain
}
