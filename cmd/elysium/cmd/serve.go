package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/elysium-hub/elysium/pkg/cerberus"
	"github.com/elysium-hub/elysium/pkg/config"
	"github.com/elysium-hub/elysium/pkg/hermes"
	"github.com/elysium-hub/elysium/pkg/lethe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a hub-authenticated demo service",
	Long: `Serve a small HTTP service behind hub authentication. Browsers log
in through the hub's OAuth flow; API clients send tokens directly.
Authenticated requests get their identity model back as JSON.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if apiToken != "" {
		cfg.APIToken = apiToken
	}
	if prefix != "" {
		cfg.ServicePrefix = prefix
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	var cache lethe.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := lethe.NewRedisCache(cfg.RedisAddr, 0, "", "elysium", cfg.CacheMaxAge)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		cache = redisCache
		logger.Info("using redis identity cache", "addr", cfg.RedisAddr)
	} else {
		cache = lethe.NewMemoryCache(cfg.CacheMaxAge)
	}

	metrics := hermes.NewPrometheusMetrics()

	client, err := cerberus.NewHubOAuth(
		cerberus.Config{
			APIURL:       cfg.APIURL,
			APIToken:     cfg.APIToken,
			BasePath:     cfg.ServicePrefix,
			AccessScopes: cfg.OAuthScopes,
			CertFile:     coalesce(certFile, cfg.SSLCertFile),
			KeyFile:      coalesce(keyFile, cfg.SSLKeyFile),
			ClientCAFile: coalesce(caFile, cfg.SSLClientCAFile),
		},
		cerberus.OAuthConfig{
			ClientID:    cfg.ClientID,
			RedirectURI: cfg.OAuthCallbackURL,
			SigningKey:  []byte(cfg.CookieSecret),
		},
		cache, metrics, logger,
	)
	if err != nil {
		return err
	}

	middleware := cerberus.NewMiddleware(client, logger)
	middleware.Limiter = cerberus.NewLoginLimiter(1, 10)
	defer middleware.Limiter.Close()

	basePath := client.BasePath()
	mux := http.NewServeMux()
	mux.Handle(basePath, middleware.WrapFunc(whoamiHandler))
	mux.Handle(basePath+"oauth_callback", cerberus.NewCallbackHandler(client))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr, "base_path", basePath)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// whoamiHandler echoes the authenticated identity.
func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	model := cerberus.ModelFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(model)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
