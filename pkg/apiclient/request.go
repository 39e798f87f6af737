package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one outbound call. The body is held in memory so the request can be
// re-issued after a credential refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// Anonymous requests carry no bearer token and return a 401 unchanged.
	// Credential-issuing endpoints such as login use it.
	Anonymous bool

	retried     bool
	accessToken string
	sentToken   string
}

// NewRequest constructs a request without a body.
func NewRequest(method string, path string, query url.Values) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Query:  query,
		Header: make(http.Header),
	}
}

// NewJSONRequest constructs a request whose body is payload encoded as JSON.
// A nil payload produces a request without a body.
func NewJSONRequest(method string, path string, payload any) (*Request, error) {
	request := NewRequest(method, path, nil)
	if payload == nil {
		return request, nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("api_client.encode_request: %w", err)
	}
	request.Body = encoded
	request.Header.Set("Content-Type", "application/json")
	return request, nil
}

// Retried reports whether the request has already been re-issued after a refresh attempt.
func (request *Request) Retried() bool {
	return request.retried
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into target.
func (response *Response) DecodeJSON(target any) error {
	if target == nil || len(response.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Body, target); err != nil {
		return fmt.Errorf("api_client.decode_response: %w", err)
	}
	return nil
}
