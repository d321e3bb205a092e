// Package app wires configuration, infrastructure connections, and every
// component into a running gateway: database and Redis, migrations,
// startup safety gates, the metrics registry, Store/Vault/Auditor/
// RateLimiter/Authenticator, the connector registry, and finally the
// HTTP server itself.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	goslack "github.com/slack-go/slack"

	"github.com/edonhq/gateway/internal/antibypass"
	"github.com/edonhq/gateway/internal/auditor"
	"github.com/edonhq/gateway/internal/authn"
	"github.com/edonhq/gateway/internal/config"
	"github.com/edonhq/gateway/internal/httpserver"
	"github.com/edonhq/gateway/internal/platform"
	"github.com/edonhq/gateway/internal/ratelimit"
	"github.com/edonhq/gateway/internal/store"
	"github.com/edonhq/gateway/internal/telemetry"
	"github.com/edonhq/gateway/internal/vault"
	"github.com/edonhq/gateway/pkg/connectors"
	"github.com/edonhq/gateway/pkg/connectors/calendar"
	"github.com/edonhq/gateway/pkg/connectors/email"
	"github.com/edonhq/gateway/pkg/connectors/filesystem"
	"github.com/edonhq/gateway/pkg/connectors/remotebot"
	"github.com/edonhq/gateway/pkg/connectors/search"
	"github.com/edonhq/gateway/pkg/connectors/slacknotify"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, runs startup safety checks, and serves HTTP until ctx
// is canceled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.JSONLogging, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting edongateway",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
		"environment", cfg.Environment,
	)

	if err := antibypass.CheckProductionConfig(antibypass.ProductionConfig{
		IsProduction: cfg.IsProduction(),
		APIToken: cfg.APIToken,
		DefaultAPIToken: config.DefaultAPIToken,
		CORSAllowedOrigins: cfg.CORSOrigins,
		TokenHardeningOn: cfg.TokenHardening,
		CredentialsStrictOn: cfg.CredentialsStrict,
	}); err != nil {
		return err
	}

	if cfg.ClawdbotBaseURL != "" {
		if err := antibypass.CheckNetworkGating(ctx, cfg.NetworkGating, cfg.ClawdbotBaseURL, antibypass.DefaultResolver); err != nil {
			return err
		}
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	st := store.New(db, logger)

	cipher, err := vault.NewCipher(cfg.VaultMasterKey)
	if err != nil {
		return fmt.Errorf("creating vault cipher: %w", err)
	}

	vlt := vault.New(st, cipher, cfg.CredentialsStrict, nil)
	adt := auditor.New(st, logger, telemetry.AuditWriteFailuresTotal)
	rl := ratelimit.New(rdb, st)
	authenticator := authn.New(st, authn.Config{
		APIToken: cfg.APIToken,
		TokenBindingEnabled: cfg.TokenBindingEnabled,
		DemoMode: cfg.DemoMode,
	})

	reg := connectors.NewRegistry()

	reg.Register("filesystem", filesystem.New(cfg.FilesystemSandboxRoot))

	var slackSender email.SlackSender
	if cfg.SlackBotToken != "" {
		slackSender = goslack.New(cfg.SlackBotToken)
	}
	reg.Register("email", email.New(filepath.Join(cfg.FilesystemSandboxRoot, "email-drafts"), slackSender, cfg.EmailViaSlackChannel))

	if cfg.SearchAPIBaseURL != "" {
		reg.Register("search", search.New(cfg.SearchAPIBaseURL))
		logger.Info("search connector enabled", "base_url", cfg.SearchAPIBaseURL)
	} else {
		logger.Info("search connector disabled (SEARCH_API_BASE_URL not set)")
	}

	if cfg.CalendarAPIBaseURL != "" {
		reg.Register("calendar", calendar.New(cfg.CalendarAPIBaseURL))
		logger.Info("calendar connector enabled", "base_url", cfg.CalendarAPIBaseURL)
	} else {
		logger.Info("calendar connector disabled (CALENDAR_API_BASE_URL not set)")
	}

	if cfg.ClawdbotBaseURL != "" {
		reg.Register("clawdbot", remotebot.New(cfg.ClawdbotBaseURL))
		logger.Info("clawdbot connector enabled", "base_url", cfg.ClawdbotBaseURL)
	} else {
		logger.Info("clawdbot connector disabled (CLAWDBOT_BASE_URL not set)")
	}

	slack := slacknotify.New(cfg.SlackAlertWebhookToken, cfg.SlackAlertChannel, logger)
	if slack.IsEnabled() {
		logger.Info("slack alert notifications enabled", "channel", cfg.SlackAlertChannel)
	} else {
		logger.Info("slack alert notifications disabled (SLACK_ALERT_WEBHOOK_TOKEN not set)")
	}

	srv := httpserver.NewServer(httpserver.Deps{
		Store: st,
		Vault: vlt,
		Auditor: adt,
		RateLimiter: rl,
		Authenticator: authenticator,
		Connectors: reg,
		Slack: slack,
		Config: cfg,
		Logger: logger,
		Metrics: metricsReg,
	})

	httpSrv := &http.Server{
		Addr: cfg.ListenAddr(),
		Handler: srv,
		ReadTimeout: 10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
