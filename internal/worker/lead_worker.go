// Package worker exports captured leads to the spreadsheet and the sales inbox.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contratandoplanos/internal/amqp"
	"contratandoplanos/internal/core"
	"contratandoplanos/internal/ports"
)

// LeadSource is the part of the store the worker needs.
type LeadSource interface {
	GetLead(ctx context.Context, id string) (core.Lead, error)
	ListUnsyncedLeads(ctx context.Context, limit int) ([]core.Lead, error)
	MarkLeadSynced(ctx context.Context, id string, at time.Time) error
}

// LeadWorker exports each lead once. The exporter and notifier are optional.
type LeadWorker struct {
	leads     LeadSource
	exporter  ports.LeadExporter
	notifier  ports.LeadNotifier
	batchSize int
	now       func() time.Time
}

func NewLeadWorker(leads LeadSource, exporter ports.LeadExporter, notifier ports.LeadNotifier, batchSize int) *LeadWorker {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &LeadWorker{
		leads:     leads,
		exporter:  exporter,
		notifier:  notifier,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleLeadMessage processes one lead captured message from AMQP.
func (w *LeadWorker) HandleLeadMessage(ctx context.Context, msg *amqp.LeadCapturedMessage) error {
	slog.InfoContext(ctx, "Processing lead message", "lead_id", msg.LeadID, "published_at", msg.Timestamp)

	lead, err := w.leads.GetLead(ctx, msg.LeadID)
	if err != nil {
		return fmt.Errorf("get lead from storage: %w", err)
	}
	return w.syncLead(ctx, lead)
}

// ProcessPendingLeads exports leads whose messages were lost or failed.
func (w *LeadWorker) ProcessPendingLeads(ctx context.Context) error {
	pending, err := w.leads.ListUnsyncedLeads(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending leads: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending leads", "count", len(pending))

	synced, failed := 0, 0
	for _, lead := range pending {
		if err := w.syncLead(ctx, lead); err != nil {
			slog.ErrorContext(ctx, "Failed to sync lead", "lead_id", lead.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending leads processed", "synced", synced, "errors", failed)
	return nil
}

// Run sweeps pending leads at start and then on every tick until ctx is done.
func (w *LeadWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.ProcessPendingLeads(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup lead sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPendingLeads(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic lead sweep failed", "error", err)
			}
		}
	}
}

// syncLead exports then notifies. A failed export is retried later; a failed
// email is only logged so the spreadsheet never receives duplicate rows.
func (w *LeadWorker) syncLead(ctx context.Context, lead core.Lead) error {
	if lead.Synced() {
		slog.InfoContext(ctx, "Lead already synced, skipping", "lead_id", lead.ID)
		return nil
	}

	if w.exporter != nil {
		if err := w.exporter.ExportLead(ctx, lead); err != nil {
			return fmt.Errorf("export lead: %w", err)
		}
	}

	if err := w.leads.MarkLeadSynced(ctx, lead.ID, w.now()); err != nil {
		return fmt.Errorf("mark lead synced: %w", err)
	}

	if w.notifier != nil {
		if err := w.notifier.NotifyLead(ctx, lead); err != nil {
			slog.ErrorContext(ctx, "Failed to send lead notification", "lead_id", lead.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Lead synced", "lead_id", lead.ID)
	return nil
}
