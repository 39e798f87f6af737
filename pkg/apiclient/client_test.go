package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type fakeBackend struct {
	mutex               sync.Mutex
	validAccess         map[string]bool
	validRefresh        map[string]bool
	issued              int
	refreshCalls        int
	protectedCalls      int
	unauthorizedSent    int
	authorizations      []string
	refreshStatus       int
	waitForUnauthorized int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		validAccess:  make(map[string]bool),
		validRefresh: make(map[string]bool),
	}
}

func (backend *fakeBackend) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")

	api.POST("/auth/refresh", func(contextGin *gin.Context) {
		var inbound struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			return
		}
		backend.awaitUnauthorized()

		backend.mutex.Lock()
		defer backend.mutex.Unlock()
		backend.refreshCalls++
		if contextGin.GetHeader("Authorization") != "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "refresh must not carry a bearer"})
			return
		}
		if backend.refreshStatus != 0 {
			contextGin.AbortWithStatusJSON(backend.refreshStatus, gin.H{"detail": "refresh unavailable"})
			return
		}
		if !backend.validRefresh[inbound.RefreshToken] {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid refresh token"})
			return
		}
		delete(backend.validRefresh, inbound.RefreshToken)
		backend.issued++
		accessToken := fmt.Sprintf("access-%d", backend.issued)
		refreshToken := fmt.Sprintf("refresh-%d", backend.issued)
		backend.validAccess[accessToken] = true
		backend.validRefresh[refreshToken] = true
		contextGin.JSON(http.StatusOK, gin.H{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"token_type":    "bearer",
		})
	})

	api.GET("/users/me", func(contextGin *gin.Context) {
		backend.mutex.Lock()
		defer backend.mutex.Unlock()
		backend.protectedCalls++
		authorization := contextGin.GetHeader("Authorization")
		backend.authorizations = append(backend.authorizations, authorization)
		if !backend.validAccess[strings.TrimPrefix(authorization, "Bearer ")] {
			backend.unauthorizedSent++
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"id": 7, "email": "user@example.com"})
	})

	api.GET("/always-unauthorized", func(contextGin *gin.Context) {
		backend.mutex.Lock()
		defer backend.mutex.Unlock()
		backend.protectedCalls++
		backend.authorizations = append(backend.authorizations, contextGin.GetHeader("Authorization"))
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "nope"})
	})

	api.POST("/expenses", func(contextGin *gin.Context) {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "amount must be positive"})
	})

	return router
}

func (backend *fakeBackend) awaitUnauthorized() {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		backend.mutex.Lock()
		reached := backend.unauthorizedSent >= backend.waitForUnauthorized
		backend.mutex.Unlock()
		if reached {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (backend *fakeBackend) counts() (int, int) {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	return backend.refreshCalls, backend.protectedCalls
}

func (backend *fakeBackend) lastAuthorization() string {
	backend.mutex.Lock()
	defer backend.mutex.Unlock()
	if len(backend.authorizations) == 0 {
		return ""
	}
	return backend.authorizations[len(backend.authorizations)-1]
}

type recordingSink struct {
	mutex  sync.Mutex
	events []Event
}

func (sink *recordingSink) Publish(event Event) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	sink.events = append(sink.events, event)
}

func (sink *recordingSink) kinds() []EventKind {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	kinds := make([]EventKind, 0, len(sink.events))
	for _, event := range sink.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type clientFixture struct {
	backend *fakeBackend
	server  *httptest.Server
	store   *MemoryCredentialStore
	metrics *CounterMetrics
	events  *recordingSink
	client  *Client
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()
	backend := newFakeBackend()
	server := httptest.NewServer(backend.router())
	t.Cleanup(server.Close)

	fixture := &clientFixture{
		backend: backend,
		server:  server,
		store:   NewMemoryCredentialStore(),
		metrics: NewCounterMetrics(),
		events:  &recordingSink{},
	}
	client, err := New(Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Store:      fixture.store,
		Logger:     zaptest.NewLogger(t),
		Metrics:    fixture.metrics,
		Events:     fixture.events,
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	fixture.client = client
	return fixture
}

func (fixture *clientFixture) seed(t *testing.T, accessToken string, refreshToken string) {
	t.Helper()
	if err := fixture.store.Set(context.Background(), Credentials{AccessToken: accessToken, RefreshToken: refreshToken}); err != nil {
		t.Fatalf("seed credentials: %v", err)
	}
}

func TestSendAttachesBearerHeader(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.backend.validAccess["access-0"] = true
	fixture.seed(t, "access-0", "refresh-0")

	response, err := fixture.client.Send(context.Background(), NewRequest(http.MethodGet, "/users/me", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}
	if got := fixture.backend.lastAuthorization(); got != "Bearer access-0" {
		t.Fatalf("expected bearer header, got %q", got)
	}
	refreshCalls, _ := fixture.backend.counts()
	if refreshCalls != 0 {
		t.Fatalf("expected no refresh, got %d", refreshCalls)
	}
	if fixture.metrics.Count(metricRequestSuccess) != 1 {
		t.Fatalf("expected request success metric")
	}
}

func TestSendRefreshesExpiredAccessTokenOnce(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.backend.validRefresh["refresh-0"] = true
	fixture.seed(t, "expired-access", "refresh-0")

	var profile struct {
		ID    int    `json:"id"`
		Email string `json:"email"`
	}
	if err := fixture.client.Do(context.Background(), http.MethodGet, "/users/me", nil, nil, &profile); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if profile.ID != 7 || profile.Email != "user@example.com" {
		t.Fatalf("unexpected payload: %+v", profile)
	}

	refreshCalls, protectedCalls := fixture.backend.counts()
	if refreshCalls != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", refreshCalls)
	}
	if protectedCalls != 2 {
		t.Fatalf("expected original call plus one retry, got %d", protectedCalls)
	}
	if got := fixture.backend.lastAuthorization(); got != "Bearer access-1" {
		t.Fatalf("retry must carry the new access token, got %q", got)
	}

	stored, err := fixture.store.Get(context.Background())
	if err != nil {
		t.Fatalf("expected stored credentials: %v", err)
	}
	if stored.AccessToken != "access-1" || stored.RefreshToken != "refresh-1" {
		t.Fatalf("expected rotated pair to be persisted, got %+v", stored)
	}
	if kinds := fixture.events.kinds(); len(kinds) != 1 || kinds[0] != EventTokensRefreshed {
		t.Fatalf("expected tokens refreshed event, got %v", kinds)
	}
	if fixture.metrics.Count(metricRefreshSuccess) != 1 {
		t.Fatalf("expected refresh success metric")
	}
}

func TestSendRefreshFailureClearsCredentials(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.seed(t, "expired-access", "expired-refresh")

	_, err := fixture.client.Send(context.Background(), NewRequest(http.MethodGet, "/users/me", nil))
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !errors.Is(err, ErrReauthenticationRequired) {
		t.Fatalf("expected ErrReauthenticationRequired, got %v", err)
	}
	if !IsUnauthorized(err) {
		t.Fatalf("expected the original 401 to be reachable, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Path != "/users/me" {
		t.Fatalf("expected original request failure first in chain, got %v", err)
	}

	if _, getErr := fixture.store.Get(context.Background()); !errors.Is(getErr, ErrNoCredentials) {
		t.Fatalf("expected credentials to be cleared, got %v", getErr)
	}
	refreshCalls, protectedCalls := fixture.backend.counts()
	if refreshCalls != 1 || protectedCalls != 1 {
		t.Fatalf("expected one refresh and no retry, got refresh=%d protected=%d", refreshCalls, protectedCalls)
	}
	if kinds := fixture.events.kinds(); len(kinds) != 1 || kinds[0] != EventReauthenticationRequired {
		t.Fatalf("expected reauthentication event, got %v", kinds)
	}
	if fixture.metrics.Count(metricRefreshFailure) != 1 {
		t.Fatalf("expected refresh failure metric")
	}
}

func TestSendRefreshServerErrorClearsCredentials(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.backend.refreshStatus = http.StatusInternalServerError
	fixture.seed(t, "expired-access", "refresh-0")

	_, err := fixture.client.Send(context.Background(), NewRequest(http.MethodGet, "/users/me", nil))
	if !errors.Is(err, ErrReauthenticationRequired) {
		t.Fatalf("expected ErrReauthenticationRequired, got %v", err)
	}
	if _, getErr := fixture.store.Get(context.Background()); !errors.Is(getErr, ErrNoCredentials) {
		t.Fatalf("expected credentials to be cleared, got %v", getErr)
	}
}

func TestSendDoesNotRetryTwice(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.backend.validRefresh["refresh-0"] = true
	fixture.seed(t, "access-0", "refresh-0")

	request := NewRequest(http.MethodGet, "/always-unauthorized", nil)
	_, err := fixture.client.Send(context.Background(), request)
	if !IsUnauthorized(err) {
		t.Fatalf("expected 401 to propagate, got %v", err)
	}
	if errors.Is(err, ErrReauthenticationRequired) {
		t.Fatalf("second 401 is terminal, not a refresh failure: %v", err)
	}
	if !request.Retried() {
		t.Fatalf("expected request to be marked retried")
	}
	refreshCalls, protectedCalls := fixture.backend.counts()
	if refreshCalls != 1 || protectedCalls != 2 {
		t.Fatalf("expected one refresh and one retry, got refresh=%d protected=%d", refreshCalls, protectedCalls)
	}

	_, err = fixture.client.Send(context.Background(), request)
	if !IsUnauthorized(err) {
		t.Fatalf("expected 401 for already retried request, got %v", err)
	}
	refreshCalls, protectedCalls = fixture.backend.counts()
	if refreshCalls != 1 || protectedCalls != 3 {
		t.Fatalf("already retried request must not refresh again, got refresh=%d protected=%d", refreshCalls, protectedCalls)
	}
}

func TestSendToRefreshEndpointNeverRecovers(t *testing.T) {
	testCases := []struct {
		name string
		path string
	}{
		{name: "canonical path", path: "/auth/refresh"},
		{name: "relative path", path: "auth/refresh"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fixture := newClientFixture(t)
			fixture.seed(t, "access-0", "refresh-0")

			err := fixture.client.Do(context.Background(), http.MethodPost, testCase.path, nil,
				map[string]string{RefreshTokenKey: "unknown"}, nil)
			if !IsUnauthorized(err) {
				t.Fatalf("expected the refresh 401 to surface, got %v", err)
			}
			if errors.Is(err, ErrReauthenticationRequired) {
				t.Fatalf("a rejected refresh call must not recover, got %v", err)
			}
			refreshCalls, _ := fixture.backend.counts()
			if refreshCalls != 1 {
				t.Fatalf("expected exactly one refresh call, got %d", refreshCalls)
			}
			stored, storeErr := fixture.store.Get(context.Background())
			if storeErr != nil || stored.RefreshToken != "refresh-0" {
				t.Fatalf("expected stored pair to survive, got %+v (%v)", stored, storeErr)
			}
			if len(fixture.events.kinds()) != 0 {
				t.Fatalf("expected no events, got %v", fixture.events.kinds())
			}
		})
	}
}

func TestSendWithoutRefreshTokenPropagatesUnauthorized(t *testing.T) {
	fixture := newClientFixture(t)

	_, err := fixture.client.Send(context.Background(), NewRequest(http.MethodGet, "/users/me", nil))
	if !IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
	if errors.Is(err, ErrReauthenticationRequired) {
		t.Fatalf("no refresh was attempted, got %v", err)
	}
	refreshCalls, _ := fixture.backend.counts()
	if refreshCalls != 0 {
		t.Fatalf("expected no refresh call, got %d", refreshCalls)
	}
	if got := fixture.backend.lastAuthorization(); got != "" {
		t.Fatalf("expected no authorization header, got %q", got)
	}
	if len(fixture.events.kinds()) != 0 {
		t.Fatalf("expected no events")
	}
}

func TestSendPassesThroughNonAuthorizationErrors(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.backend.validRefresh["refresh-0"] = true
	fixture.seed(t, "access-0", "refresh-0")

	request, err := NewJSONRequest(http.MethodPost, "/expenses", map[string]any{"amount": -1})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	_, err = fixture.client.Send(context.Background(), request)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || statusErr.Detail != "amount must be positive" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
	if Detail(err) != "amount must be positive" {
		t.Fatalf("unexpected detail %q", Detail(err))
	}
	if request.Retried() {
		t.Fatalf("non-auth failures must not mark the request retried")
	}
	refreshCalls, _ := fixture.backend.counts()
	if refreshCalls != 0 {
		t.Fatalf("expected no refresh call, got %d", refreshCalls)
	}
}

func TestSendSurfacesTransportErrors(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.seed(t, "access-0", "refresh-0")
	fixture.server.Close()

	_, err := fixture.client.Send(context.Background(), NewRequest(http.MethodGet, "/users/me", nil))
	if err == nil || !strings.Contains(err.Error(), "api_client.transport") {
		t.Fatalf("expected transport error, got %v", err)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Fatalf("transport errors carry no status, got %v", statusErr)
	}
	if _, getErr := fixture.store.Get(context.Background()); getErr != nil {
		t.Fatalf("transport errors must not clear credentials: %v", getErr)
	}
}

func TestConcurrentUnauthorizedRequestsShareOneRefresh(t *testing.T) {
	const workers = 8

	fixture := newClientFixture(t)
	fixture.backend.validRefresh["refresh-0"] = true
	fixture.backend.waitForUnauthorized = workers
	fixture.seed(t, "expired-access", "refresh-0")

	var group sync.WaitGroup
	errs := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		group.Add(1)
		go func() {
			defer group.Done()
			_, err := fixture.client.Send(context.Background(), NewRequest(http.MethodGet, "/users/me", nil))
			errs <- err
		}()
	}
	group.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("expected every request to recover, got %v", err)
		}
	}
	refreshCalls, protectedCalls := fixture.backend.counts()
	if refreshCalls != 1 {
		t.Fatalf("expected a single shared refresh call, got %d", refreshCalls)
	}
	if protectedCalls != 2*workers {
		t.Fatalf("expected each request to retry once, got %d calls", protectedCalls)
	}
}

func TestSendUsesRotatedPairWithoutRefreshing(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.backend.validAccess["access-9"] = true
	fixture.seed(t, "access-9", "refresh-9")

	request := NewRequest(http.MethodGet, "/users/me", nil)
	request.sentToken = "stale-access"
	response, err := fixture.client.recoverUnauthorized(context.Background(), request, newStatusError(http.MethodGet, "/users/me", http.StatusUnauthorized, nil))
	if err != nil {
		t.Fatalf("expected retry with the stored pair, got %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}
	refreshCalls, _ := fixture.backend.counts()
	if refreshCalls != 0 {
		t.Fatalf("expected no refresh call, got %d", refreshCalls)
	}
	if fixture.metrics.Count(metricRefreshSkipped) != 1 {
		t.Fatalf("expected refresh skipped metric")
	}
}

func TestNewValidatesConfiguration(t *testing.T) {
	store := NewMemoryCredentialStore()
	testCases := []struct {
		name     string
		config   Config
		expected error
	}{
		{name: "missing base url", config: Config{Store: store}, expected: ErrMissingBaseURL},
		{name: "relative base url", config: Config{BaseURL: "localhost:8000", Store: store}, expected: ErrInvalidBaseURL},
		{name: "missing store", config: Config{BaseURL: "http://localhost:8000"}, expected: ErrMissingCredentialStore},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := New(testCase.config); !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestEndpointJoinsBasePathPrefixAndQuery(t *testing.T) {
	client, err := New(Config{BaseURL: "https://api.example.com/backend/", APIPrefix: "api/v2/", Store: NewMemoryCredentialStore()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := client.endpoint("/expenses", map[string][]string{"page": {"2"}})
	expected := "https://api.example.com/backend/api/v2/expenses?page=2"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}

	defaultClient, err := New(Config{BaseURL: "http://localhost:8000", Store: NewMemoryCredentialStore()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := defaultClient.endpoint("auth/refresh", nil); got != "http://localhost:8000/api/v1/auth/refresh" {
		t.Fatalf("unexpected default endpoint %q", got)
	}
}

func TestAnonymousRequestSkipsBearerAndRecovery(t *testing.T) {
	fixture := newClientFixture(t)
	fixture.backend.validRefresh["refresh-0"] = true
	fixture.seed(t, "expired-access", "refresh-0")

	request := NewRequest(http.MethodGet, "/users/me", nil)
	request.Anonymous = true
	_, err := fixture.client.Send(context.Background(), request)
	if !IsUnauthorized(err) {
		t.Fatalf("expected 401 to propagate, got %v", err)
	}
	if got := fixture.backend.lastAuthorization(); got != "" {
		t.Fatalf("anonymous request must not carry a bearer, got %q", got)
	}
	refreshCalls, _ := fixture.backend.counts()
	if refreshCalls != 0 {
		t.Fatalf("anonymous request must not refresh, got %d", refreshCalls)
	}
	if _, getErr := fixture.store.Get(context.Background()); getErr != nil {
		t.Fatalf("credentials must survive, got %v", getErr)
	}
}
