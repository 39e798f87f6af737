package web

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errNoBrowserOrigins    = errors.New("web.cors.no_origins")
	errWildcardOrigin      = errors.New("web.cors.wildcard_origin")
	errMalformedOrigin     = errors.New("web.cors.malformed_origin")
	errPlainHTTPOnExternal = errors.New("web.cors.plain_http_external_host")
)

// ConfigureCORS lets browser tooling on the listed origins call the development API with bearer
// tokens. Plain http is accepted for loopback hosts only.
func ConfigureCORS(logger *zap.Logger, allowedOrigins []string) (gin.HandlerFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins, err := browserOrigins(allowedOrigins)
	if err != nil {
		return nil, err
	}
	logger.Info("cors enabled",
		zap.String("code", "web.cors.configured"),
		zap.Strings("origins", origins))
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Disposition", "WWW-Authenticate"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}), nil
}

// browserOrigins normalizes entries to scheme://host[:port], keeping the first occurrence of each.
func browserOrigins(entries []string) ([]string, error) {
	origins := make([]string, 0, len(entries))
	for _, entry := range entries {
		trimmed := strings.TrimRight(strings.TrimSpace(entry), "/")
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "*") {
			return nil, fmt.Errorf("%w: %s", errWildcardOrigin, trimmed)
		}
		origin, err := normalizeOrigin(trimmed)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(origins, origin) {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return nil, errNoBrowserOrigins
	}
	return origins, nil
}

func normalizeOrigin(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || parsed.Path != "" || parsed.RawQuery != "" || parsed.Fragment != "" || parsed.User != nil {
		return "", fmt.Errorf("%w: %s", errMalformedOrigin, raw)
	}
	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	switch scheme {
	case "https":
	case "http":
		if !isLoopbackHost(parsed.Hostname()) {
			return "", fmt.Errorf("%w: %s", errPlainHTTPOnExternal, raw)
		}
	default:
		return "", fmt.Errorf("%w: %s", errMalformedOrigin, raw)
	}
	return scheme + "://" + host, nil
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	address := net.ParseIP(host)
	return address != nil && address.IsLoopback()
}
