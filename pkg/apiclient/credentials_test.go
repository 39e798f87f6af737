package apiclient

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryCredentialStoreRoundTrip(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()

	if _, err := store.Get(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials on empty store, got %v", err)
	}
	if err := store.Set(ctx, Credentials{AccessToken: "access"}); !errors.Is(err, ErrIncompleteCredentials) {
		t.Fatalf("expected half pair to be rejected, got %v", err)
	}
	if err := store.Set(ctx, Credentials{AccessToken: "access", RefreshToken: "refresh"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	stored, err := store.Get(ctx)
	if err != nil || stored.AccessToken != "access" || stored.RefreshToken != "refresh" {
		t.Fatalf("unexpected stored pair %+v (%v)", stored, err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Get(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected cleared store, got %v", err)
	}
}

func TestCredentialsComplete(t *testing.T) {
	testCases := []struct {
		name        string
		credentials Credentials
		expected    bool
	}{
		{name: "both", credentials: Credentials{AccessToken: "a", RefreshToken: "r"}, expected: true},
		{name: "missing refresh", credentials: Credentials{AccessToken: "a"}, expected: false},
		{name: "blank access", credentials: Credentials{AccessToken: "  ", RefreshToken: "r"}, expected: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.credentials.Complete(); got != testCase.expected {
				t.Fatalf("expected %v, got %v", testCase.expected, got)
			}
		})
	}
}

func TestExtractDetail(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "string detail", body: `{"detail":"Incorrect email or password"}`, expected: "Incorrect email or password"},
		{name: "validation list", body: `{"detail":[{"loc":["body","email"],"msg":"field required"},{"msg":"too short"}]}`, expected: "field required; too short"},
		{name: "error field", body: `{"error":"invalid_refresh_token"}`, expected: "invalid_refresh_token"},
		{name: "not json", body: `<html>bad gateway</html>`, expected: ""},
		{name: "empty", body: ``, expected: ""},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := extractDetail([]byte(testCase.body)); got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestStatusErrorHelpers(t *testing.T) {
	err := error(newStatusError("GET", "/users/me", 401, []byte(`{"detail":"expired"}`)))
	if !IsUnauthorized(err) || IsStatus(err, 403) {
		t.Fatalf("unexpected status classification for %v", err)
	}
	if Detail(err) != "expired" {
		t.Fatalf("unexpected detail %q", Detail(err))
	}
	if err.Error() != "api_client.status: GET /users/me returned 401: expired" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Detail(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no detail")
	}
}
