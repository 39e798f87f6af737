// Package taxapi exposes typed services for the tax assistant API and the session state built on them.
package taxapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

var (
	// ErrInvalidArgument reports a request rejected before it reached the network.
	ErrInvalidArgument = errors.New("taxapi.invalid_argument")
)

// Services bundles every endpoint group over one authenticated client.
type Services struct {
	client *apiclient.Client

	Auth     *AuthService
	Users    *UserService
	Chat     *ChatService
	Expenses *ExpenseService
	Ledger   *LedgerService
}

// NewServices constructs the endpoint groups.
func NewServices(client *apiclient.Client) *Services {
	shared := &caller{client: client}
	return &Services{
		client:   client,
		Auth:     &AuthService{caller: shared},
		Users:    &UserService{caller: shared},
		Chat:     &ChatService{caller: shared},
		Expenses: &ExpenseService{caller: shared},
		Ledger:   &LedgerService{caller: shared},
	}
}

type caller struct {
	client *apiclient.Client
}

// call issues one request and decodes the response body into out when out is non-nil.
func (caller *caller) call(ctx context.Context, method string, path string, query url.Values, payload any, out any, anonymous bool) (*apiclient.Response, error) {
	request, err := apiclient.NewJSONRequest(method, path, payload)
	if err != nil {
		return nil, err
	}
	request.Query = query
	request.Anonymous = anonymous
	response, err := caller.client.Send(ctx, request)
	if err != nil {
		return nil, err
	}
	if err := response.DecodeJSON(out); err != nil {
		return nil, err
	}
	return response, nil
}

func invalidArgument(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}
