package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"contratandoplanos/internal/core"
)

const leadColumns = `id, name, email, phone, city, plan_type, lives, message, created_at, synced_at`

func scanLead(s scanner) (core.Lead, error) {
	var (
		l        core.Lead
		planType string
		synced   sql.NullTime
	)
	if err := s.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.City, &planType, &l.Lives, &l.Message, &l.CreatedAt, &synced); err != nil {
		return core.Lead{}, err
	}
	l.PlanType = core.PlanType(planType)
	l.SyncedAt = timePtr(synced)
	return l, nil
}

func (r *Repository) CreateLead(ctx context.Context, l core.Lead) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.Name, l.Email, l.Phone, l.City, string(l.PlanType), l.Lives, l.Message, l.CreatedAt.UTC(), nullTime(l.SyncedAt))
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	slog.InfoContext(ctx, "Lead saved", "id", l.ID, "plan_type", l.PlanType, "lives", l.Lives)
	return nil
}

func (r *Repository) GetLead(ctx context.Context, id string) (core.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return core.Lead{}, fmt.Errorf("get lead %s: %w", id, notFound(err))
	}
	return l, nil
}

func (r *Repository) queryLeads(ctx context.Context, query string, args ...any) ([]core.Lead, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []core.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// ListLeads returns the newest leads.
func (r *Repository) ListLeads(ctx context.Context, limit int) ([]core.Lead, error) {
	return r.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListUnsyncedLeads returns leads not yet exported, oldest first.
func (r *Repository) ListUnsyncedLeads(ctx context.Context, limit int) ([]core.Lead, error) {
	return r.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE synced_at IS NULL ORDER BY created_at LIMIT $1`, limit)
}

func (r *Repository) MarkLeadSynced(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET synced_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark lead synced: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("mark lead synced %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Lead marked as synced", "id", id)
	return nil
}
