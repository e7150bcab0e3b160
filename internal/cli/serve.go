package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"contratandoplanos/internal/amqp"
	"contratandoplanos/internal/auth"
	"contratandoplanos/internal/backend"
	apphttp "contratandoplanos/internal/http"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/markdown"
	"contratandoplanos/internal/ports"
	"contratandoplanos/internal/services"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Serve the public site, the broker portal and the admin back-office.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	generated, err := cfg.EnsureJWTSecret()
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("JWT_SECRET not set, using a random secret; sessions end on restart")
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage).Logger).Create(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close database", applog.FieldError, err)
		}
	}()

	var publisher ports.LeadPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, leads wait for the worker sweep", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	authorizer, err := auth.NewAuthorizer()
	if err != nil {
		return fmt.Errorf("load access policy: %w", err)
	}
	md := markdown.NewRenderer()
	hasher := auth.NewPasswordHasher(0)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		SecureCookies:      cfg.SecureCookies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		StatusPollInterval: cfg.StatusPollInterval,
		CatalogCacheTTL:    cfg.CatalogCacheTTL,
		ImageSources:       imageSources(cfg),
	}, apphttp.Deps{
		Store:      res.Store,
		Objects:    res.Objects,
		Leads:      services.NewLeadService(res.Store, publisher, md),
		Proposals:  services.NewProposalService(res.Store, res.Objects),
		Brokers:    services.NewBrokerService(res.Store, res.Objects, hasher),
		Admins:     services.NewAdminService(res.Store, hasher),
		Sessions:   auth.NewSessions(cfg.JWTSecret, cfg.SessionTTL),
		Authorizer: authorizer,
		Markdown:   md,
		Logger:     logger.WithComponent(applog.ComponentHTTP),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting contratandoplanos server", "port", cfg.Port, "env", cfg.Env,
			"database", cfg.DatabaseDriver, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
