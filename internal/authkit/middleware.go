package authkit

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsContextKey = "auth_claims"

// DetailInvalidCredentials is the 401 body text for missing or rejected bearer tokens.
const DetailInvalidCredentials = "Could not validate credentials"

// RequireBearer validates the Authorization bearer token and injects claims.
func RequireBearer(configuration ServerConfig, dependencies Dependencies) gin.HandlerFunc {
	dependencies = dependencies.withDefaults()
	return func(contextGin *gin.Context) {
		tokenText, found := bearerToken(contextGin.GetHeader("Authorization"))
		if !found {
			abortUnauthorized(contextGin)
			return
		}
		claims, err := ParseAccessToken(configuration, dependencies.Clock, tokenText)
		if err != nil {
			dependencies.Logger.Debug("bearer rejected",
				zap.String("code", "auth.bearer.rejected"),
				zap.Error(err))
			dependencies.Metrics.Increment(metricBearerRejected)
			abortUnauthorized(contextGin)
			return
		}
		contextGin.Set(claimsContextKey, claims)
		contextGin.Next()
	}
}

// ClaimsFromContext returns the claims injected by RequireBearer.
func ClaimsFromContext(contextGin *gin.Context) (*AccessClaims, bool) {
	claimsValue, found := contextGin.Get(claimsContextKey)
	if !found {
		return nil, false
	}
	claims, ok := claimsValue.(*AccessClaims)
	return claims, ok && claims != nil
}

func bearerToken(header string) (string, bool) {
	scheme, tokenText, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tokenText = strings.TrimSpace(tokenText)
	return tokenText, tokenText != ""
}

func abortUnauthorized(contextGin *gin.Context) {
	contextGin.Header("WWW-Authenticate", "Bearer")
	contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": DetailInvalidCredentials})
}
