package taxapi

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	pathSignup  = "/auth/signup"
	pathLogin   = "/auth/login"
	pathKakao   = "/auth/kakao"
	pathRefresh = "/auth/refresh"

	minimumPasswordLength = 8
)

// AuthService calls the credential-issuing endpoints. These requests never carry a bearer token.
type AuthService struct {
	caller *caller
}

// Signup registers a new email account.
func (service *AuthService) Signup(ctx context.Context, request SignupRequest) (AuthResponse, error) {
	if strings.TrimSpace(request.Email) == "" {
		return AuthResponse{}, invalidArgument("email is required")
	}
	if utf8.RuneCountInString(request.Password) < minimumPasswordLength {
		return AuthResponse{}, invalidArgument("password must be at least 8 characters")
	}
	var response AuthResponse
	_, err := service.caller.call(ctx, http.MethodPost, pathSignup, nil, request, &response, true)
	return response, err
}

// Login authenticates with email and password.
func (service *AuthService) Login(ctx context.Context, request LoginRequest) (AuthResponse, error) {
	var response AuthResponse
	_, err := service.caller.call(ctx, http.MethodPost, pathLogin, nil, request, &response, true)
	return response, err
}

// KakaoLogin exchanges a Kakao access token.
func (service *AuthService) KakaoLogin(ctx context.Context, kakaoAccessToken string) (AuthResponse, error) {
	if strings.TrimSpace(kakaoAccessToken) == "" {
		return AuthResponse{}, invalidArgument("kakao access token is required")
	}
	var response AuthResponse
	_, err := service.caller.call(ctx, http.MethodPost, pathKakao, nil, KakaoLoginRequest{AccessToken: kakaoAccessToken}, &response, true)
	return response, err
}

// Refresh exchanges a refresh token explicitly. The authenticated client refreshes on its own;
// this is for callers that manage the pair themselves.
func (service *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	var response TokenResponse
	_, err := service.caller.call(ctx, http.MethodPost, pathRefresh, nil, map[string]string{"refresh_token": refreshToken}, &response, true)
	return response, err
}
