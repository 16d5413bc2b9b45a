package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/classgate"
	"github.com/MrEthical07/classgate/audit/natssink"
	"github.com/MrEthical07/classgate/internal/config"
	"github.com/MrEthical07/classgate/internal/httpapi"
	"github.com/MrEthical07/classgate/internal/logging"
	promexport "github.com/MrEthical07/classgate/metrics/export/prometheus"
	"github.com/MrEthical07/classgate/notify"
	"github.com/MrEthical07/classgate/store/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return oops.Code("CONFIG_INVALID").Wrap(err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cfg config.Service) error {
	logger := logging.Setup("classgate", version, logging.Options{Format: cfg.Log.Format, Level: cfg.Log.Level}, os.Stderr)
	slog.SetDefault(logger)

	engineCfg, err := cfg.Engine()
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "engine config").Wrap(err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
	}

	pool, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	var notifier classgate.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.SMTP.Host != "" {
		notifier, err = notify.NewSMTPNotifier(notify.SMTPConfig(cfg.SMTP))
		if err != nil {
			return oops.Code("SMTP_INVALID").Wrap(err)
		}
	} else {
		logger.Warn("no smtp host configured, passcode messages will be logged")
	}

	var sink classgate.AuditSink = classgate.NewSlogSink(logger)
	if cfg.NATS.URL != "" {
		nc, err := natssink.Connect(cfg.NATS.URL, "classgate", logger)
		if err != nil {
			return oops.Code("NATS_CONNECT_FAILED").With("url", cfg.NATS.URL).Wrap(err)
		}
		defer nc.Close()
		sink = natssink.New(nc, natssink.Options{SubjectPrefix: cfg.NATS.SubjectPrefix, Logger: logger})
	}

	classrooms := postgres.NewClassrooms(pool)
	engine, err := classgate.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserDirectory(postgres.NewUsers(pool)).
		WithClassrooms(classrooms).
		WithMemberships(classrooms).
		WithNotifier(notifier).
		WithLogger(logger).
		WithAuditSink(sink).
		Build()
	if err != nil {
		return oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}
	defer engine.Close()

	logger.Info("security posture", "report", engine.SecurityReport())

	metrics, err := promexport.Handler(engine)
	if err != nil {
		return oops.Code("METRICS_INIT_FAILED").Wrap(err)
	}

	api := httpapi.NewServer(engine, httpapi.Options{
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		SecureCookies:     engineCfg.Security.RequireSecureCookies,
		SameSite:          engineCfg.Security.SameSitePolicy,
		TrustProxyHeaders: cfg.HTTP.TrustProxyHeaders,
		Metrics:           metrics,
		Logger:            logger,
		Ready: func(ctx context.Context) error {
			return errors.Join(rdb.Ping(ctx).Err(), pool.Ping(ctx))
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
