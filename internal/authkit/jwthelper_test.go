package authkit

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fixedClock struct {
	timestamp time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.timestamp
}

func newTestServerConfig() ServerConfig {
	return ServerConfig{
		SigningKey: []byte("test-signing-key-0123456789abcdef"),
		Issuer:     DefaultIssuer,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}
}

func TestMintAccessTokenRejectsEmptySubject(t *testing.T) {
	t.Parallel()

	_, _, err := MintAccessToken(fixedClock{timestamp: time.Unix(1700000000, 0)}, "", "user@example.com", "issuer", []byte("signing-key"), time.Minute)
	if err == nil {
		t.Fatalf("expected error when user ID is empty")
	}
	expected := "jwt.mint.failure: subject must be non-empty"
	if err.Error() != expected {
		t.Fatalf("expected error %q, got %q", expected, err.Error())
	}
}

func TestMintAccessTokenCarriesClockTimestamps(t *testing.T) {
	t.Parallel()

	reference := time.Unix(1700000000, 0).UTC()
	token, expiresAt, err := MintAccessToken(fixedClock{timestamp: reference}, "42", "user@example.com", "issuer", []byte("signing-key"), 2*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected compact JWT, got %q", token)
	}
	if expected := reference.Add(2 * time.Minute); !expiresAt.Equal(expected) {
		t.Fatalf("expected expiry %v, got %v", expected, expiresAt)
	}
}

func TestParseAccessToken(t *testing.T) {
	t.Parallel()

	configuration := newTestServerConfig()
	issuedAt := time.Unix(1700000000, 0).UTC()
	token, _, err := MintAccessToken(fixedClock{timestamp: issuedAt}, "42", "user@example.com", configuration.Issuer, configuration.SigningKey, configuration.AccessTTL)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	testCases := []struct {
		name          string
		configuration ServerConfig
		now           time.Time
		token         string
		expectValid   bool
	}{
		{name: "valid", configuration: configuration, now: issuedAt.Add(time.Minute), token: token, expectValid: true},
		{name: "expired", configuration: configuration, now: issuedAt.Add(configuration.AccessTTL + time.Second), token: token},
		{name: "wrong key", configuration: ServerConfig{SigningKey: []byte("other"), Issuer: configuration.Issuer}, now: issuedAt, token: token},
		{name: "wrong issuer", configuration: ServerConfig{SigningKey: configuration.SigningKey, Issuer: "someone-else"}, now: issuedAt, token: token},
		{name: "garbage", configuration: configuration, now: issuedAt, token: "not-a-jwt"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			claims, parseErr := ParseAccessToken(testCase.configuration, fixedClock{timestamp: testCase.now}, testCase.token)
			if testCase.expectValid {
				if parseErr != nil {
					t.Fatalf("unexpected error: %v", parseErr)
				}
				if claims.UserID != "42" || claims.UserEmail != "user@example.com" || claims.Subject != "42" {
					t.Fatalf("unexpected claims %+v", claims)
				}
				return
			}
			if !errors.Is(parseErr, errInvalidAccessToken) {
				t.Fatalf("expected errInvalidAccessToken, got %v", parseErr)
			}
		})
	}
}

func TestServerConfigValidate(t *testing.T) {
	t.Parallel()

	valid := newTestServerConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mutations := map[string]func(*ServerConfig){
		"signing key": func(configuration *ServerConfig) { configuration.SigningKey = nil },
		"issuer":      func(configuration *ServerConfig) { configuration.Issuer = "" },
		"access ttl":  func(configuration *ServerConfig) { configuration.AccessTTL = 0 },
		"refresh ttl": func(configuration *ServerConfig) { configuration.RefreshTTL = -time.Second },
	}
	for name, mutate := range mutations {
		configuration := newTestServerConfig()
		mutate(&configuration)
		if err := configuration.Validate(); !errors.Is(err, errInvalidServerConfig) || !strings.Contains(err.Error(), name) {
			t.Fatalf("%s: expected invalid config error, got %v", name, err)
		}
	}
}
