package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"contratandoplanos/internal/amqp"
	"contratandoplanos/internal/config"
	applog "contratandoplanos/internal/log"
	"contratandoplanos/internal/notify"
	"contratandoplanos/internal/ports"
	gsheet "contratandoplanos/internal/sheets/google"
	"contratandoplanos/internal/worker"
)

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Export captured leads",
		Long:  `Consume lead captured messages and sweep pending leads into Google Sheets and the sales inbox.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := SignalContext(cmd.Context())
			defer stop()
			return a.work(ctx)
		},
	}
}

func (a *app) work(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger.WithComponent(applog.ComponentWorker)
	logger.Info("Starting contratandoplanos worker")

	repo, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	exporter, err := leadExporter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	notifier := leadNotifier(cfg, logger)
	leadWorker := worker.NewLeadWorker(repo, exporter, notifier, cfg.SyncBatchSize)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeLeadCaptured(gctx, leadWorker.HandleLeadMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	g.Go(func() error {
		err := leadWorker.Run(gctx, cfg.SyncInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Worker stopped gracefully")
	return nil
}

// leadExporter returns nil when no spreadsheet is configured.
func leadExporter(ctx context.Context, cfg *config.Config, logger *applog.Logger) (ports.LeadExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	exporter, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleLeadsSheet,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets exporter: %w", err)
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return exporter, nil
}

// leadNotifier returns nil when SMTP is not configured.
func leadNotifier(cfg *config.Config, logger *applog.Logger) ports.LeadNotifier {
	if !cfg.MailEnabled() {
		logger.Info("Lead emails disabled - SMTP_HOST or LEADS_NOTIFY_TO missing")
		return nil
	}
	return notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       notify.ParseRecipients(cfg.LeadsNotifyTo),
	})
}
