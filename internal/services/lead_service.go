package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contratandoplanos/internal/core"
	"contratandoplanos/internal/ports"
)

// TextSanitizer strips markup from user supplied text.
type TextSanitizer interface {
	PlainText(s string) string
}

// LeadService stores quote requests and announces them to the worker.
type LeadService struct {
	store     ports.LeadStore
	publisher ports.LeadPublisher
	sanitizer TextSanitizer
	now       clock
}

// NewLeadService accepts a nil publisher; leads are then exported by the
// worker's pending sweep only.
func NewLeadService(store ports.LeadStore, publisher ports.LeadPublisher, sanitizer TextSanitizer) *LeadService {
	return &LeadService{store: store, publisher: publisher, sanitizer: sanitizer, now: time.Now}
}

// Create saves the lead first, then publishes. A publish failure is logged only.
func (s *LeadService) Create(ctx context.Context, lead core.Lead) (core.Lead, error) {
	lead.Name = s.sanitizer.PlainText(lead.Name)
	lead.City = s.sanitizer.PlainText(lead.City)
	lead.Message = s.sanitizer.PlainText(lead.Message)
	lead.Email = strings.TrimSpace(lead.Email)
	lead.Phone = core.NormalizePhone(lead.Phone)

	if err := lead.Validate(); err != nil {
		return core.Lead{}, err
	}

	lead.ID = newID()
	lead.CreatedAt = s.now().UTC()
	lead.SyncedAt = nil

	if err := s.store.CreateLead(ctx, lead); err != nil {
		return core.Lead{}, fmt.Errorf("save lead: %w", err)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, lead left for the pending sweep", "lead_id", lead.ID)
		return lead, nil
	}
	if err := s.publisher.PublishLeadCaptured(ctx, lead.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish lead captured message", "lead_id", lead.ID, "error", err)
	}
	return lead, nil
}

func (s *LeadService) Recent(ctx context.Context, limit int) ([]core.Lead, error) {
	return s.store.ListLeads(ctx, limit)
}
