package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"contratandoplanos/internal/core"
	"contratandoplanos/internal/ports"
)

const commissionColumns = `m.id, m.broker_id, m.proposal_id, m.amount_cents, m.status, m.paid_at, m.created_at,
	p.client_name, c.name`

const commissionFrom = ` FROM comissoes m
	JOIN propostas p ON p.id = m.proposal_id
	JOIN corretores c ON c.id = m.broker_id`

func scanCommission(s scanner) (core.Commission, error) {
	var (
		m      core.Commission
		status string
		paidAt sql.NullTime
	)
	err := s.Scan(&m.ID, &m.BrokerID, &m.ProposalID, &m.Amount.Cents, &status, &paidAt, &m.CreatedAt,
		&m.ClientName, &m.BrokerName)
	if err != nil {
		return core.Commission{}, err
	}
	m.Status = core.CommissionStatus(status)
	m.PaidAt = timePtr(paidAt)
	return m, nil
}

// ListCommissions returns matching commissions, newest first.
func (r *Repository) ListCommissions(ctx context.Context, f ports.CommissionFilter) ([]core.Commission, error) {
	var (
		where []string
		args  []any
	)
	if f.BrokerID != "" {
		args = append(args, f.BrokerID)
		where = append(where, "m.broker_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "m.status = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + commissionColumns + commissionFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY m.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()

	var commissions []core.Commission
	for rows.Next() {
		m, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		commissions = append(commissions, m)
	}
	return commissions, rows.Err()
}

func (r *Repository) GetCommission(ctx context.Context, id string) (core.Commission, error) {
	m, err := scanCommission(r.db.QueryRowContext(ctx, `SELECT `+commissionColumns+commissionFrom+` WHERE m.id = $1`, id))
	if err != nil {
		return core.Commission{}, fmt.Errorf("get commission %s: %w", id, notFound(err))
	}
	return m, nil
}

// MarkCommissionPaid is idempotent: an already paid commission keeps its date.
func (r *Repository) MarkCommissionPaid(ctx context.Context, id string, paidAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE comissoes SET status = $1, paid_at = COALESCE(paid_at, $2) WHERE id = $3`,
		string(core.CommissionPaid), paidAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark commission paid: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("mark commission paid %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Commission paid", "id", id)
	return nil
}
