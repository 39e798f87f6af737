package authkit

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// MinPasswordLength is the shortest password signup accepts.
	MinPasswordLength = 8

	detailEmailRegistered    = "Email already registered"
	detailIncorrectLogin     = "Incorrect email or password"
	detailInvalidRefresh     = "Invalid refresh token"
	detailInternalError      = "Internal server error"
	tokenTypeBearer          = "bearer"
	providerEmail            = "email"
	validationMessageEmail   = "value is not a valid email address"
	validationMessageMissing = "field required"
)

type signupPayload struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type userBasicPayload struct {
	ID       int64   `json:"id"`
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Provider string  `json:"provider"`
}

type authPayload struct {
	tokenPayload
	User userBasicPayload `json:"user"`
}

type validationIssue struct {
	Location []string `json:"loc"`
	Message  string   `json:"msg"`
	Type     string   `json:"type"`
}

type authHandlers struct {
	configuration ServerConfig
	users         UserStore
	refreshTokens RefreshTokenStore
	dependencies  Dependencies
}

// MountAuthRoutes registers /auth/signup, /auth/login, /auth/refresh and /auth/logout.
func MountAuthRoutes(router gin.IRouter, configuration ServerConfig, users UserStore, refreshTokens RefreshTokenStore, dependencies Dependencies) {
	handlers := &authHandlers{
		configuration: configuration,
		users:         users,
		refreshTokens: refreshTokens,
		dependencies:  dependencies.withDefaults(),
	}
	router.POST("/auth/signup", handlers.signup)
	router.POST("/auth/login", handlers.login)
	router.POST("/auth/refresh", handlers.refresh)
	router.POST("/auth/logout", handlers.logout)
}

func (handlers *authHandlers) signup(contextGin *gin.Context) {
	var inbound signupPayload
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		handlers.dependencies.Metrics.Increment(metricSignupFailure)
		abortValidation(contextGin, validationIssue{Location: []string{"body"}, Message: "invalid json body", Type: "value_error.jsondecode"})
		return
	}
	if issues := validateSignup(inbound); len(issues) > 0 {
		handlers.dependencies.Metrics.Increment(metricSignupFailure)
		abortValidation(contextGin, issues...)
		return
	}
	name := ""
	if inbound.Name != nil {
		name = strings.TrimSpace(*inbound.Name)
	}
	user, err := handlers.users.CreateUser(contextGin.Request.Context(), normalizeEmail(inbound.Email), inbound.Password, name)
	if err != nil {
		handlers.dependencies.Metrics.Increment(metricSignupFailure)
		if errors.Is(err, ErrUserExists) {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detailEmailRegistered})
			return
		}
		handlers.internalError(contextGin, "auth.signup.store_failed", err)
		return
	}
	tokens, _, err := handlers.issuePair(contextGin, user, "")
	if err != nil {
		handlers.dependencies.Metrics.Increment(metricSignupFailure)
		handlers.internalError(contextGin, "auth.signup.issue_failed", err)
		return
	}
	handlers.dependencies.Metrics.Increment(metricSignupSuccess)
	handlers.dependencies.Logger.Info("user signed up", zap.String("code", "auth.signup.success"), zap.Int64("user_id", user.ID))
	contextGin.JSON(http.StatusCreated, authPayload{tokenPayload: tokens, User: basicUser(user)})
}

func (handlers *authHandlers) login(contextGin *gin.Context) {
	var inbound loginPayload
	if err := contextGin.ShouldBindJSON(&inbound); err != nil {
		handlers.dependencies.Metrics.Increment(metricLoginFailure)
		abortValidation(contextGin, validationIssue{Location: []string{"body"}, Message: "invalid json body", Type: "value_error.jsondecode"})
		return
	}
	user, err := handlers.users.Authenticate(contextGin.Request.Context(), normalizeEmail(inbound.Email), inbound.Password)
	if err != nil {
		handlers.dependencies.Metrics.Increment(metricLoginFailure)
		if errors.Is(err, ErrInvalidUserCredentials) || errors.Is(err, ErrUserNotFound) {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detailIncorrectLogin})
			return
		}
		handlers.internalError(contextGin, "auth.login.store_failed", err)
		return
	}
	tokens, _, err := handlers.issuePair(contextGin, user, "")
	if err != nil {
		handlers.dependencies.Metrics.Increment(metricLoginFailure)
		handlers.internalError(contextGin, "auth.login.issue_failed", err)
		return
	}
	handlers.dependencies.Metrics.Increment(metricLoginSuccess)
	contextGin.JSON(http.StatusOK, authPayload{tokenPayload: tokens, User: basicUser(user)})
}

func (handlers *authHandlers) refresh(contextGin *gin.Context) {
	var inbound refreshPayload
	if err := contextGin.ShouldBindJSON(&inbound); err != nil || strings.TrimSpace(inbound.RefreshToken) == "" {
		handlers.rejectRefresh(contextGin, errors.New("missing refresh_token"))
		return
	}
	ctx := contextGin.Request.Context()
	applicationUserID, currentTokenID, _, err := handlers.refreshTokens.Validate(ctx, inbound.RefreshToken)
	if err != nil {
		handlers.rejectRefresh(contextGin, err)
		return
	}
	user, err := handlers.users.GetUser(ctx, applicationUserID)
	if err != nil {
		handlers.rejectRefresh(contextGin, err)
		return
	}
	// The presented token stays valid until its successor exists.
	tokens, issuedTokenID, err := handlers.issuePair(contextGin, user, currentTokenID)
	if err != nil {
		handlers.dependencies.Metrics.Increment(metricRefreshFailure)
		handlers.internalError(contextGin, "auth.refresh.issue_failed", err)
		return
	}
	if err := handlers.refreshTokens.Revoke(ctx, currentTokenID); err != nil {
		// A concurrent rotation already consumed this token; withdraw the pair it raced to.
		if rollbackErr := handlers.refreshTokens.Revoke(ctx, issuedTokenID); rollbackErr != nil {
			handlers.dependencies.Logger.Warn("failed to withdraw raced refresh token",
				zap.String("code", "auth.refresh.rollback_failed"),
				zap.Error(rollbackErr))
		}
		handlers.rejectRefresh(contextGin, err)
		return
	}
	handlers.dependencies.Metrics.Increment(metricRefreshSuccess)
	contextGin.JSON(http.StatusOK, tokens)
}

func (handlers *authHandlers) logout(contextGin *gin.Context) {
	var inbound refreshPayload
	if err := contextGin.ShouldBindJSON(&inbound); err == nil && strings.TrimSpace(inbound.RefreshToken) != "" {
		ctx := contextGin.Request.Context()
		if _, tokenID, _, validateErr := handlers.refreshTokens.Validate(ctx, inbound.RefreshToken); validateErr == nil {
			_ = handlers.refreshTokens.Revoke(ctx, tokenID)
		}
	}
	handlers.dependencies.Metrics.Increment(metricLogout)
	contextGin.Status(http.StatusNoContent)
}

func (handlers *authHandlers) issuePair(contextGin *gin.Context, user UserRecord, previousTokenID string) (tokenPayload, string, error) {
	now := handlers.dependencies.Clock.Now()
	applicationUserID := strconv.FormatInt(user.ID, 10)
	accessToken, _, err := MintAccessToken(handlers.dependencies.Clock, applicationUserID, user.Email, handlers.configuration.Issuer, handlers.configuration.SigningKey, handlers.configuration.AccessTTL)
	if err != nil {
		return tokenPayload{}, "", err
	}
	refreshTokenID, refreshOpaque, err := handlers.refreshTokens.Issue(contextGin.Request.Context(), applicationUserID, now.Add(handlers.configuration.RefreshTTL).Unix(), previousTokenID)
	if err != nil {
		return tokenPayload{}, "", err
	}
	return tokenPayload{AccessToken: accessToken, RefreshToken: refreshOpaque, TokenType: tokenTypeBearer}, refreshTokenID, nil
}

func (handlers *authHandlers) rejectRefresh(contextGin *gin.Context, cause error) {
	handlers.dependencies.Metrics.Increment(metricRefreshFailure)
	handlers.dependencies.Logger.Info("refresh rejected", zap.String("code", "auth.refresh.rejected"), zap.Error(cause))
	contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detailInvalidRefresh})
}

func (handlers *authHandlers) internalError(contextGin *gin.Context, code string, err error) {
	handlers.dependencies.Logger.Error("auth handler failed", zap.String("code", code), zap.Error(err))
	contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": detailInternalError})
}

func validateSignup(inbound signupPayload) []validationIssue {
	var issues []validationIssue
	email := strings.TrimSpace(inbound.Email)
	if email == "" {
		issues = append(issues, validationIssue{Location: []string{"body", "email"}, Message: validationMessageMissing, Type: "value_error.missing"})
	} else if _, err := mail.ParseAddress(email); err != nil {
		issues = append(issues, validationIssue{Location: []string{"body", "email"}, Message: validationMessageEmail, Type: "value_error.email"})
	}
	if utf8.RuneCountInString(inbound.Password) < MinPasswordLength {
		issues = append(issues, validationIssue{
			Location: []string{"body", "password"},
			Message:  "ensure this value has at least " + strconv.Itoa(MinPasswordLength) + " characters",
			Type:     "value_error.any_str.min_length",
		})
	}
	return issues
}

func abortValidation(contextGin *gin.Context, issues ...validationIssue) {
	contextGin.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": issues})
}

func basicUser(user UserRecord) userBasicPayload {
	payload := userBasicPayload{ID: user.ID, Provider: user.Provider}
	if user.Email != "" {
		email := user.Email
		payload.Email = &email
	}
	if user.Name != "" {
		name := user.Name
		payload.Name = &name
	}
	if payload.Provider == "" {
		payload.Provider = providerEmail
	}
	return payload
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
