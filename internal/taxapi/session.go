package taxapi

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

// Fallback messages used when the backend supplies no detail.
const (
	messageLoginFailed      = "login failed"
	messageSignupFailed     = "signup failed"
	messageKakaoLoginFailed = "kakao login failed"
	messageSessionExpired   = "session expired, please log in again"
)

// EventSubscriber delivers client events. *notify.Bus[apiclient.Event] satisfies it.
type EventSubscriber interface {
	Subscribe(handler func(apiclient.Event)) func()
}

// SessionState is a point-in-time view of the signed-in user.
type SessionState struct {
	User            *User
	Subscription    *Subscription
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// Session tracks who is signed in and keeps the credential store in step with it.
type Session struct {
	mutex       sync.RWMutex
	state       SessionState
	auth        *AuthService
	users       *UserService
	store       apiclient.CredentialStore
	logger      *zap.Logger
	unsubscribe func()
}

// NewSession constructs a session. When events is non-nil the session resets itself after the
// client reports that reauthentication is required.
func NewSession(services *Services, events EventSubscriber, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	session := &Session{
		auth:        services.Auth,
		users:       services.Users,
		store:       services.client.Store(),
		logger:      logger,
		unsubscribe: func() {},
	}
	if events != nil {
		session.unsubscribe = events.Subscribe(session.handleEvent)
	}
	return session
}

// Close detaches the session from client events.
func (session *Session) Close() {
	session.unsubscribe()
}

// Snapshot returns a copy of the current state.
func (session *Session) Snapshot() SessionState {
	session.mutex.RLock()
	defer session.mutex.RUnlock()
	return session.state
}

// Login signs in with email and password, persists the credential pair and loads the full profile.
func (session *Session) Login(ctx context.Context, email string, password string) error {
	session.begin()
	response, err := session.auth.Login(ctx, LoginRequest{Email: email, Password: password})
	if err != nil {
		return session.fail(err, messageLoginFailed)
	}
	return session.establish(ctx, response, messageLoginFailed)
}

// Signup registers an account and signs in with it.
func (session *Session) Signup(ctx context.Context, email string, password string, name string) error {
	session.begin()
	request := SignupRequest{Email: email, Password: password}
	if name != "" {
		request.Name = &name
	}
	response, err := session.auth.Signup(ctx, request)
	if err != nil {
		return session.fail(err, messageSignupFailed)
	}
	return session.establish(ctx, response, messageSignupFailed)
}

// KakaoLogin signs in with a Kakao OAuth access token.
func (session *Session) KakaoLogin(ctx context.Context, kakaoAccessToken string) error {
	session.begin()
	response, err := session.auth.KakaoLogin(ctx, kakaoAccessToken)
	if err != nil {
		return session.fail(err, messageKakaoLoginFailed)
	}
	return session.establish(ctx, response, messageKakaoLoginFailed)
}

// Logout forgets the credential pair and resets the state. No server call is made.
func (session *Session) Logout(ctx context.Context) error {
	clearErr := session.store.Clear(ctx)
	session.mutex.Lock()
	session.state = SessionState{}
	session.mutex.Unlock()
	if clearErr != nil {
		return fmt.Errorf("taxapi.session.logout: %w", clearErr)
	}
	return nil
}

// FetchUser reloads the profile. Any failure logs the session out.
func (session *Session) FetchUser(ctx context.Context) error {
	user, err := session.users.Me(ctx)
	if err != nil {
		session.logger.Info("profile fetch failed, logging out",
			zap.String("code", "taxapi.session.fetch_user_failed"),
			zap.Error(err))
		if logoutErr := session.Logout(ctx); logoutErr != nil {
			session.logger.Warn("logout after failed profile fetch failed",
				zap.String("code", "taxapi.session.logout_failed"),
				zap.Error(logoutErr))
		}
		return fmt.Errorf("taxapi.session.fetch_user: %w", err)
	}
	profile := user.User
	session.mutex.Lock()
	session.state.User = &profile
	session.state.Subscription = user.Subscription
	session.state.IsAuthenticated = true
	session.mutex.Unlock()
	return nil
}

// ClearError resets the last error message.
func (session *Session) ClearError() {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.state.Error = ""
}

func (session *Session) begin() {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.state.IsLoading = true
	session.state.Error = ""
}

func (session *Session) fail(err error, fallback string) error {
	message := apiclient.Detail(err)
	if message == "" {
		message = fallback
	}
	session.mutex.Lock()
	session.state.IsLoading = false
	session.state.Error = message
	session.mutex.Unlock()
	return err
}

func (session *Session) establish(ctx context.Context, response AuthResponse, fallback string) error {
	credentials := response.Credentials()
	if !credentials.Complete() {
		return session.fail(fmt.Errorf("taxapi.session: %w", apiclient.ErrIncompleteCredentials), fallback)
	}
	if err := session.store.Set(ctx, credentials); err != nil {
		return session.fail(fmt.Errorf("taxapi.session.persist: %w", err), fallback)
	}
	basic := User{
		ID:       response.User.ID,
		Email:    response.User.Email,
		Name:     response.User.Name,
		Provider: response.User.Provider,
	}
	session.mutex.Lock()
	session.state.User = &basic
	session.state.IsAuthenticated = true
	session.state.IsLoading = false
	session.mutex.Unlock()
	return session.FetchUser(ctx)
}

func (session *Session) handleEvent(event apiclient.Event) {
	if event.Kind != apiclient.EventReauthenticationRequired {
		return
	}
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.state = SessionState{Error: messageSessionExpired}
	session.logger.Info("session reset after failed refresh",
		zap.String("code", "taxapi.session.expired"),
		zap.Error(event.Err))
}
