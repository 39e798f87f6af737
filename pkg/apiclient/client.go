package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultAPIPrefix is the version prefix every request path is mounted under.
const DefaultAPIPrefix = "/api/v1"

const refreshPath = "/auth/refresh"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Config configures the Client.
type Config struct {
	// BaseURL is the backend origin, e.g. https://api.example.com.
	BaseURL string
	// APIPrefix defaults to DefaultAPIPrefix.
	APIPrefix  string
	HTTPClient *http.Client
	Store      CredentialStore
	Logger     *zap.Logger
	Metrics    MetricsRecorder
	Events     EventSink
	Clock      Clock
}

// Client attaches the stored access token to every request and recovers once from an
// expired access token by exchanging the refresh token for a new pair.
// It is safe for concurrent use; concurrent refresh attempts share one backend call.
type Client struct {
	baseURL    *url.URL
	apiPrefix  string
	httpClient *http.Client
	store      CredentialStore
	logger     *zap.Logger
	metrics    MetricsRecorder
	events     EventSink
	clock      Clock

	refreshGroup singleflight.Group
}

// New constructs a Client after validating the supplied configuration.
func New(configuration Config) (*Client, error) {
	rawBaseURL := strings.TrimSpace(configuration.BaseURL)
	if rawBaseURL == "" {
		return nil, fmt.Errorf("api_client.new: %w", ErrMissingBaseURL)
	}
	parsedBaseURL, parseErr := url.Parse(rawBaseURL)
	if parseErr != nil || parsedBaseURL.Scheme == "" || parsedBaseURL.Host == "" {
		return nil, fmt.Errorf("api_client.new: %w: %s", ErrInvalidBaseURL, rawBaseURL)
	}
	parsedBaseURL.Path = strings.TrimRight(parsedBaseURL.Path, "/")
	parsedBaseURL.RawQuery = ""
	parsedBaseURL.Fragment = ""

	if configuration.Store == nil {
		return nil, fmt.Errorf("api_client.new: %w", ErrMissingCredentialStore)
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var metrics MetricsRecorder = noopMetrics{}
	if configuration.Metrics != nil {
		metrics = configuration.Metrics
	}
	var events EventSink = noopSink{}
	if configuration.Events != nil {
		events = configuration.Events
	}
	var clock Clock = systemClock{}
	if configuration.Clock != nil {
		clock = configuration.Clock
	}

	return &Client{
		baseURL:    parsedBaseURL,
		apiPrefix:  normalizePrefix(configuration.APIPrefix),
		httpClient: httpClient,
		store:      configuration.Store,
		logger:     logger,
		metrics:    metrics,
		events:     events,
		clock:      clock,
	}, nil
}

// Store exposes the credential store so login and logout flows write through the same source of truth.
func (client *Client) Store() CredentialStore {
	return client.store
}

// Send performs the request with the stored access token attached. A 401 on a request that has
// not been retried triggers one refresh-and-retry; every other failure is returned unchanged.
// Requests to the refresh endpoint are always sent without a bearer and never recover.
func (client *Client) Send(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, fmt.Errorf("api_client.send: %w", ErrMissingRequest)
	}
	response, err := client.dispatch(ctx, request)
	if err == nil {
		client.metrics.Increment(metricRequestSuccess)
		return response, nil
	}
	if !IsUnauthorized(err) || request.retried || request.Anonymous || isRefreshPath(request.Path) {
		client.metrics.Increment(metricRequestFailure)
		return nil, err
	}
	request.retried = true
	return client.recoverUnauthorized(ctx, request, err)
}

// Do sends payload as JSON and decodes a successful response into out. Either may be nil.
func (client *Client) Do(ctx context.Context, method string, path string, query url.Values, payload any, out any) error {
	request, err := NewJSONRequest(method, path, payload)
	if err != nil {
		return err
	}
	request.Query = query
	response, err := client.Send(ctx, request)
	if err != nil {
		return err
	}
	return response.DecodeJSON(out)
}

func (client *Client) recoverUnauthorized(ctx context.Context, request *Request, authErr error) (*Response, error) {
	stored, loadErr := client.store.Get(ctx)
	if loadErr != nil {
		if !errors.Is(loadErr, ErrNoCredentials) {
			client.logger.Warn("credential lookup failed after authorization failure",
				zap.String("code", "api_client.refresh.lookup_failed"),
				zap.Error(loadErr))
		} else {
			client.logger.Info("no refresh credential stored",
				zap.String("code", "api_client.refresh.unavailable"),
				zap.String("path", request.Path))
		}
		client.metrics.Increment(metricRequestFailure)
		return nil, authErr
	}

	if stored.AccessToken != request.sentToken {
		// Another request already rotated the pair while this one was in flight.
		client.metrics.Increment(metricRefreshSkipped)
		client.logger.Debug("stored access token changed, retrying without refresh",
			zap.String("code", "api_client.refresh.skipped"),
			zap.String("path", request.Path))
		request.accessToken = stored.AccessToken
		return client.Send(ctx, request)
	}

	refreshed, refreshErr := client.refresh(ctx, stored.RefreshToken)
	if refreshErr != nil {
		client.metrics.Increment(metricRequestFailure)
		return nil, fmt.Errorf("%w: %w; refresh: %w", ErrReauthenticationRequired, authErr, refreshErr)
	}
	request.accessToken = refreshed.AccessToken
	return client.Send(ctx, request)
}

func (client *Client) refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	result, err, shared := client.refreshGroup.Do(refreshToken, func() (any, error) {
		return client.exchangeRefreshToken(context.WithoutCancel(ctx), refreshToken)
	})
	if shared {
		client.metrics.Increment(metricRefreshShared)
	}
	if err != nil {
		return Credentials{}, err
	}
	return result.(Credentials), nil
}

func (client *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (Credentials, error) {
	current, currentErr := client.store.Get(ctx)
	switch {
	case currentErr == nil && current.RefreshToken != refreshToken:
		// A flight that finished moments ago already rotated the pair.
		return current, nil
	case errors.Is(currentErr, ErrNoCredentials):
		return Credentials{}, fmt.Errorf("api_client.refresh: %w", ErrNoCredentials)
	}

	refreshed, err := client.postRefresh(ctx, refreshToken)
	if err == nil {
		err = client.store.Set(ctx, refreshed)
		if err != nil {
			err = fmt.Errorf("api_client.refresh.persist: %w", err)
		}
	}
	if err != nil {
		client.metrics.Increment(metricRefreshFailure)
		client.logger.Warn("token refresh failed, clearing credentials",
			zap.String("code", "api_client.refresh.failed"),
			zap.Error(err))
		if clearErr := client.store.Clear(ctx); clearErr != nil {
			client.logger.Error("failed to clear credentials",
				zap.String("code", "api_client.refresh.clear_failed"),
				zap.Error(clearErr))
		}
		client.events.Publish(Event{Kind: EventReauthenticationRequired, OccurredAt: client.clock.Now(), Err: err})
		return Credentials{}, err
	}

	client.metrics.Increment(metricRefreshSuccess)
	client.logger.Info("token refreshed", zap.String("code", "api_client.refresh.success"))
	client.events.Publish(Event{Kind: EventTokensRefreshed, OccurredAt: client.clock.Now()})
	return refreshed, nil
}

// postRefresh calls the refresh endpoint directly; its own 401 never re-enters recovery.
func (client *Client) postRefresh(ctx context.Context, refreshToken string) (Credentials, error) {
	request, err := NewJSONRequest(http.MethodPost, refreshPath, map[string]string{RefreshTokenKey: refreshToken})
	if err != nil {
		return Credentials{}, err
	}
	httpRequest, err := client.buildHTTPRequest(ctx, request, "")
	if err != nil {
		return Credentials{}, err
	}
	response, err := client.roundTrip(httpRequest, request)
	if err != nil {
		return Credentials{}, err
	}
	var refreshed Credentials
	if err := response.DecodeJSON(&refreshed); err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrMalformedRefreshResponse, err)
	}
	if !refreshed.Complete() {
		return Credentials{}, ErrMalformedRefreshResponse
	}
	return refreshed, nil
}

func (client *Client) dispatch(ctx context.Context, request *Request) (*Response, error) {
	accessToken := request.accessToken
	if isRefreshPath(request.Path) {
		accessToken = ""
	} else if accessToken == "" && !request.Anonymous {
		stored, err := client.store.Get(ctx)
		switch {
		case err == nil:
			accessToken = stored.AccessToken
		case errors.Is(err, ErrNoCredentials):
		default:
			return nil, fmt.Errorf("api_client.load_credentials: %w", err)
		}
	}
	request.sentToken = accessToken

	httpRequest, err := client.buildHTTPRequest(ctx, request, accessToken)
	if err != nil {
		return nil, err
	}
	return client.roundTrip(httpRequest, request)
}

func (client *Client) roundTrip(httpRequest *http.Request, request *Request) (*Response, error) {
	startTime := time.Now()
	httpResponse, err := client.httpClient.Do(httpRequest)
	if err != nil {
		client.logger.Warn("transport error",
			zap.String("code", "api_client.transport"),
			zap.String("method", request.Method),
			zap.String("path", request.Path),
			zap.Error(err))
		return nil, fmt.Errorf("api_client.transport: %w", err)
	}
	defer func() { _ = httpResponse.Body.Close() }()

	body, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return nil, fmt.Errorf("api_client.transport.read_body: %w", readErr)
	}
	client.logger.Debug("http",
		zap.String("method", request.Method),
		zap.String("path", request.Path),
		zap.Int("status", httpResponse.StatusCode),
		zap.Bool("retried", request.retried),
		zap.Duration("elapsed", time.Since(startTime)))

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return nil, newStatusError(request.Method, request.Path, httpResponse.StatusCode, body)
	}
	return &Response{
		StatusCode: httpResponse.StatusCode,
		Header:     httpResponse.Header,
		Body:       body,
	}, nil
}

func (client *Client) buildHTTPRequest(ctx context.Context, request *Request, accessToken string) (*http.Request, error) {
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(request.Body) > 0 {
		body = bytes.NewReader(request.Body)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, method, client.endpoint(request.Path, request.Query), body)
	if err != nil {
		return nil, fmt.Errorf("api_client.build_request: %w", err)
	}
	for name, values := range request.Header {
		for _, value := range values {
			httpRequest.Header.Add(name, value)
		}
	}
	if httpRequest.Header.Get("Accept") == "" {
		httpRequest.Header.Set("Accept", "application/json")
	}
	if accessToken != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return httpRequest, nil
}

func (client *Client) endpoint(path string, query url.Values) string {
	target := *client.baseURL
	target.Path = client.baseURL.Path + client.apiPrefix + "/" + strings.TrimLeft(path, "/")
	target.RawQuery = query.Encode()
	return target.String()
}

func isRefreshPath(path string) bool {
	return "/"+strings.Trim(strings.TrimSpace(path), "/") == refreshPath
}

func normalizePrefix(prefix string) string {
	trimmed := strings.Trim(strings.TrimSpace(prefix), "/")
	if trimmed == "" {
		return DefaultAPIPrefix
	}
	return "/" + trimmed
}
