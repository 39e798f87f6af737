package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tyemirov/taxpilot/internal/authkit"
)

const (
	providerEmail      = "email"
	statusActive       = "active"
	detailUserNotFound = "User not found"
)

// UserProfile represents an application user.
type UserProfile struct {
	ID             int64
	Email          string
	Name           string
	ProfileImage   string
	MarketingAgree bool
	PasswordHash   []byte
	CreatedAt      time.Time
}

// InMemoryUsers is a bcrypt-backed user store used for local runs.
type InMemoryUsers struct {
	mutex    sync.RWMutex
	byID     map[int64]*UserProfile
	byEmail  map[string]int64
	nextID   int64
	hashCost int
	clock    authkit.Clock
}

// NewInMemoryUsers constructs an empty store. A nil clock reads the wall clock.
func NewInMemoryUsers(clock authkit.Clock) *InMemoryUsers {
	if clock == nil {
		clock = authkit.NewSystemClock()
	}
	return &InMemoryUsers{
		byID:     make(map[int64]*UserProfile),
		byEmail:  make(map[string]int64),
		hashCost: bcrypt.DefaultCost,
		clock:    clock,
	}
}

// CreateUser registers an email account with a bcrypt password hash.
func (store *InMemoryUsers) CreateUser(ctx context.Context, email string, password string, name string) (authkit.UserRecord, error) {
	passwordHash, hashErr := bcrypt.GenerateFromPassword([]byte(password), store.hashCost)
	if hashErr != nil {
		return authkit.UserRecord{}, fmt.Errorf("users.create.hash: %w", hashErr)
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, exists := store.byEmail[email]; exists {
		return authkit.UserRecord{}, authkit.ErrUserExists
	}
	store.nextID++
	profile := &UserProfile{
		ID:           store.nextID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    store.clock.Now(),
	}
	store.byID[profile.ID] = profile
	store.byEmail[email] = profile.ID
	return record(profile), nil
}

// Authenticate checks the password against the stored hash.
func (store *InMemoryUsers) Authenticate(ctx context.Context, email string, password string) (authkit.UserRecord, error) {
	store.mutex.RLock()
	profile, exists := store.byID[store.byEmail[email]]
	store.mutex.RUnlock()
	if !exists {
		return authkit.UserRecord{}, authkit.ErrInvalidUserCredentials
	}
	if err := bcrypt.CompareHashAndPassword(profile.PasswordHash, []byte(password)); err != nil {
		return authkit.UserRecord{}, authkit.ErrInvalidUserCredentials
	}
	return record(profile), nil
}

// GetUser returns the user for an application user id as carried in access tokens.
func (store *InMemoryUsers) GetUser(ctx context.Context, applicationUserID string) (authkit.UserRecord, error) {
	profile, err := store.Profile(applicationUserID)
	if err != nil {
		return authkit.UserRecord{}, err
	}
	return record(&profile), nil
}

// Profile returns a copy of the full profile.
func (store *InMemoryUsers) Profile(applicationUserID string) (UserProfile, error) {
	userID, parseErr := strconv.ParseInt(applicationUserID, 10, 64)
	if parseErr != nil {
		return UserProfile{}, fmt.Errorf("%w: %s", authkit.ErrUserNotFound, applicationUserID)
	}
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	profile, exists := store.byID[userID]
	if !exists {
		return UserProfile{}, fmt.Errorf("%w: %s", authkit.ErrUserNotFound, applicationUserID)
	}
	return *profile, nil
}

// ProfileUpdate holds the mutable profile fields; nil fields are left untouched.
type ProfileUpdate struct {
	Name           *string `json:"name"`
	ProfileImage   *string `json:"profile_image"`
	MarketingAgree *bool   `json:"marketing_agree"`
}

// UpdateProfile applies update and returns the stored result.
func (store *InMemoryUsers) UpdateProfile(applicationUserID string, update ProfileUpdate) (UserProfile, error) {
	userID, parseErr := strconv.ParseInt(applicationUserID, 10, 64)
	if parseErr != nil {
		return UserProfile{}, fmt.Errorf("%w: %s", authkit.ErrUserNotFound, applicationUserID)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	profile, exists := store.byID[userID]
	if !exists {
		return UserProfile{}, fmt.Errorf("%w: %s", authkit.ErrUserNotFound, applicationUserID)
	}
	if update.Name != nil {
		profile.Name = strings.TrimSpace(*update.Name)
	}
	if update.ProfileImage != nil {
		profile.ProfileImage = strings.TrimSpace(*update.ProfileImage)
	}
	if update.MarketingAgree != nil {
		profile.MarketingAgree = *update.MarketingAgree
	}
	return *profile, nil
}

func record(profile *UserProfile) authkit.UserRecord {
	return authkit.UserRecord{ID: profile.ID, Email: profile.Email, Name: profile.Name, Provider: providerEmail}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func userPayload(profile UserProfile) gin.H {
	return gin.H{
		"id":              profile.ID,
		"email":           optionalString(profile.Email),
		"name":            optionalString(profile.Name),
		"provider":        providerEmail,
		"business_type":   nil,
		"business_name":   nil,
		"business_number": nil,
		"tax_type":        nil,
		"profile_image":   optionalString(profile.ProfileImage),
		"is_admin":        false,
		"status":          statusActive,
		"is_verified":     true,
		"created_at":      profile.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleWhoAmI serves GET /users/me for the authenticated user.
func HandleWhoAmI(logger *zap.Logger, users *InMemoryUsers) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if users == nil {
		panic("user store is required")
	}

	return func(contextGin *gin.Context) {
		profile, ok := resolveProfile(contextGin, logger, users)
		if !ok {
			return
		}
		payload := userPayload(profile)
		payload["subscription"] = nil
		contextGin.JSON(http.StatusOK, payload)
	}
}

// HandleUpdateProfile serves PUT /users/me.
func HandleUpdateProfile(logger *zap.Logger, users *InMemoryUsers) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if users == nil {
		panic("user store is required")
	}

	return func(contextGin *gin.Context) {
		claims, found := authkit.ClaimsFromContext(contextGin)
		if !found {
			logger.Warn("missing auth claims on context", zap.String("code", "api.me.missing_claims"))
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": authkit.DetailInvalidCredentials})
			return
		}
		var update ProfileUpdate
		if err := contextGin.ShouldBindJSON(&update); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid json body"})
			return
		}
		profile, err := users.UpdateProfile(claims.UserID, update)
		if err != nil {
			respondProfileError(contextGin, logger, claims.UserID, err)
			return
		}
		logger.Info("profile updated", zap.String("code", "api.me.updated"), zap.String("user_id", claims.UserID))
		contextGin.JSON(http.StatusOK, userPayload(profile))
	}
}

func resolveProfile(contextGin *gin.Context, logger *zap.Logger, users *InMemoryUsers) (UserProfile, bool) {
	claims, found := authkit.ClaimsFromContext(contextGin)
	if !found {
		logger.Warn("missing auth claims on context", zap.String("code", "api.me.missing_claims"))
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": authkit.DetailInvalidCredentials})
		return UserProfile{}, false
	}
	profile, err := users.Profile(claims.UserID)
	if err != nil {
		respondProfileError(contextGin, logger, claims.UserID, err)
		return UserProfile{}, false
	}
	return profile, true
}

func respondProfileError(contextGin *gin.Context, logger *zap.Logger, userID string, err error) {
	if errors.Is(err, authkit.ErrUserNotFound) {
		logger.Warn("user profile missing",
			zap.String("code", "api.me.profile_missing"),
			zap.String("user_id", userID))
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": detailUserNotFound})
		return
	}
	logger.Error("user profile lookup error",
		zap.String("code", "api.me.profile_error"),
		zap.String("user_id", userID),
		zap.Error(err))
	contextGin.AbortWithStatus(http.StatusInternalServerError)
}
