package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors exposed by the client.
var (
	ErrMissingBaseURL           = errors.New("api_client.missing_base_url")
	ErrInvalidBaseURL           = errors.New("api_client.invalid_base_url")
	ErrMissingCredentialStore   = errors.New("api_client.missing_credential_store")
	ErrMissingRequest           = errors.New("api_client.missing_request")
	ErrReauthenticationRequired = errors.New("api_client.reauthentication_required")
	ErrMalformedRefreshResponse = errors.New("api_client.malformed_refresh_response")
)

// StatusError is returned for every non-2xx response. The body is kept verbatim so callers can
// interpret validation errors themselves.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Detail     string
}

func newStatusError(method string, path string, statusCode int, body []byte) *StatusError {
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Body:       body,
		Detail:     extractDetail(body),
	}
}

func (statusErr *StatusError) Error() string {
	if statusErr.Detail != "" {
		return fmt.Sprintf("api_client.status: %s %s returned %d: %s", statusErr.Method, statusErr.Path, statusErr.StatusCode, statusErr.Detail)
	}
	return fmt.Sprintf("api_client.status: %s %s returned %d", statusErr.Method, statusErr.Path, statusErr.StatusCode)
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, statusCode int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == statusCode
}

// IsUnauthorized reports whether err carries an authorization failure.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// Detail returns the backend's human readable failure text, if any.
func Detail(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Detail
	}
	return ""
}

// extractDetail understands the {"detail": "..."} and {"detail": [{"msg": "..."}]} bodies the API returns.
func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Detail) == 0 {
		return envelope.Error
	}
	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}
	var items []struct {
		Message string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		messages := make([]string, 0, len(items))
		for _, item := range items {
			if item.Message != "" {
				messages = append(messages, item.Message)
			}
		}
		return strings.Join(messages, "; ")
	}
	return ""
}
