package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tyemirov/taxpilot/internal/authkit"
	"github.com/tyemirov/taxpilot/internal/web"
)

const apiPrefix = "/api/v1"

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "devapi",
		Short:   "Local backend issuing bearer access tokens and rotating refresh tokens for taxpilot",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8000", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access JWT")
	rootCmd.Flags().Duration("session_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 14*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().String("database_url", "", "Database URL for refresh tokens (postgres:// or sqlite://; leave empty for in-memory store)")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for browser clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	for _, key := range []string{"listen_addr", "jwt_signing_key", "session_ttl", "refresh_ttl", "database_url", "enable_cors", "cors_allowed_origins"} {
		_ = viper.BindPFlag(key, rootCmd.Flags().Lookup(key))
	}

	viper.SetEnvPrefix("DEVAPI")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeInvalidSessionTTL       = "config.invalid_session_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeMissingCORSOrigins      = "config.missing_cors_allowed_origins"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig reads token settings from viper.
func LoadServerConfig() (authkit.ServerConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	sessionTTL := viper.GetDuration("session_ttl")
	if sessionTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidSessionTTL, "session_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	return authkit.ServerConfig{
		SigningKey: []byte(jwtSigningKey),
		Issuer:     authkit.DefaultIssuer,
		AccessTTL:  sessionTTL,
		RefreshTTL: refreshTTL,
	}, nil
}

type routerOptions struct {
	clock              authkit.Clock
	refreshStore       authkit.RefreshTokenStore
	enableCORS         bool
	corsAllowedOrigins []string
}

func buildRouter(logger *zap.Logger, serverConfig authkit.ServerConfig, options routerOptions) (*gin.Engine, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsRecorder, metricsErr := authkit.NewPrometheusMetrics(registry)
	if metricsErr != nil {
		return nil, metricsErr
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if options.enableCORS {
		if len(options.corsAllowedOrigins) == 0 {
			return nil, configError(configCodeMissingCORSOrigins, "cors_allowed_origins must be provided when enable_cors is true")
		}
		corsMiddleware, corsErr := web.ConfigureCORS(logger, options.corsAllowedOrigins)
		if corsErr != nil {
			return nil, corsErr
		}
		router.Use(corsMiddleware)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	dependencies := authkit.Dependencies{Logger: logger, Metrics: metricsRecorder, Clock: options.clock}
	userStore := web.NewInMemoryUsers(options.clock)
	refreshStore := options.refreshStore
	if refreshStore == nil {
		refreshStore = authkit.NewMemoryRefreshTokenStore(options.clock)
	}

	api := router.Group(apiPrefix)
	authkit.MountAuthRoutes(api, serverConfig, userStore, refreshStore, dependencies)

	protected := api.Group("/users")
	protected.Use(authkit.RequireBearer(serverConfig, dependencies))
	protected.GET("/me", web.HandleWhoAmI(logger, userStore))
	protected.PUT("/me", web.HandleUpdateProfile(logger, userStore))

	return router, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	if commandContext == nil {
		commandContext = context.Background()
	}
	serverConfig, ok := commandContext.Value(serverConfigContextKey).(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	databaseURL := viper.GetString("database_url")
	clock := authkit.NewSystemClock()

	options := routerOptions{
		clock:              clock,
		enableCORS:         viper.GetBool("enable_cors"),
		corsAllowedOrigins: viper.GetStringSlice("cors_allowed_origins"),
	}
	if databaseURL != "" {
		persistentStore, storeErr := authkit.NewDatabaseRefreshTokenStore(commandContext, databaseURL, clock)
		if storeErr != nil {
			return storeErr
		}
		defer func() { _ = persistentStore.Close() }()
		options.refreshStore = persistentStore
		logger.Info("using persistent refresh token store", zap.String("driver", persistentStore.Driver()))
	} else {
		logger.Info("using in-memory refresh token store")
	}

	gin.SetMode(gin.ReleaseMode)
	router, routerErr := buildRouter(logger, serverConfig, options)
	if routerErr != nil {
		return routerErr
	}

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr), zap.String("api_prefix", apiPrefix))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", time.Since(startTime)),
		)
	}
}
