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

const proposalColumns = `p.id, p.broker_id, p.product_id, p.client_name, p.client_cpf, p.client_email, p.client_phone,
	p.client_birth_date, p.value_cents, p.status, p.notes, p.created_at, p.updated_at, c.name`

const proposalFrom = ` FROM propostas p JOIN corretores c ON c.id = p.broker_id`

func scanProposal(s scanner) (core.Proposal, error) {
	var (
		p      core.Proposal
		birth  sql.NullTime
		status string
	)
	err := s.Scan(&p.ID, &p.BrokerID, &p.ProductID, &p.ClientName, &p.ClientCPF, &p.ClientEmail, &p.ClientPhone,
		&birth, &p.Value.Cents, &status, &p.Notes, &p.CreatedAt, &p.UpdatedAt, &p.BrokerName)
	if err != nil {
		return core.Proposal{}, err
	}
	p.ClientBirthDate = timePtr(birth)
	p.Status = core.ProposalStatus(status)
	return p, nil
}

// CreateProposal stores the proposal and its documents atomically.
func (r *Repository) CreateProposal(ctx context.Context, p core.Proposal, docs []core.Document) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO propostas (id, broker_id, product_id, client_name, client_cpf, client_email, client_phone,
				client_birth_date, value_cents, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID, p.BrokerID, p.ProductID, p.ClientName, p.ClientCPF, p.ClientEmail, p.ClientPhone,
			nullTime(p.ClientBirthDate), p.Value.Cents, string(p.Status), p.Notes, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert proposal: %w", err)
		}
		for _, d := range docs {
			if err := insertDocument(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Proposal saved", "id", p.ID, "broker_id", p.BrokerID, "documents", len(docs))
	return nil
}

func (r *Repository) GetProposal(ctx context.Context, id string) (core.Proposal, error) {
	p, err := scanProposal(r.db.QueryRowContext(ctx, `SELECT `+proposalColumns+proposalFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return core.Proposal{}, fmt.Errorf("get proposal %s: %w", id, notFound(err))
	}
	return p, nil
}

// ListProposals returns matching proposals, newest first.
func (r *Repository) ListProposals(ctx context.Context, f ports.ProposalFilter) ([]core.Proposal, error) {
	var (
		where []string
		args  []any
	)
	if f.BrokerID != "" {
		args = append(args, f.BrokerID)
		where = append(where, "p.broker_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, "p.status = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + proposalColumns + proposalFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []core.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

func (r *Repository) UpdateProposalStatus(ctx context.Context, id string, status core.ProposalStatus, at time.Time, commission *core.Commission) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE propostas SET status = $1, updated_at = $2 WHERE id = $3`, string(status), at.UTC(), id)
		if err != nil {
			return fmt.Errorf("update proposal status: %w", err)
		}
		if err := expectRow(res); err != nil {
			return fmt.Errorf("update proposal status %s: %w", id, err)
		}

		if status != core.ProposalApproved {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM comissoes WHERE proposal_id = $1 AND status = $2`, id, string(core.CommissionPending)); err != nil {
				return fmt.Errorf("drop pending commission: %w", err)
			}
			return nil
		}

		if commission == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO comissoes (id, broker_id, proposal_id, amount_cents, status, paid_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (proposal_id) DO NOTHING`,
			commission.ID, commission.BrokerID, id, commission.Amount.Cents, string(commission.Status),
			nullTime(commission.PaidAt), commission.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert commission: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Proposal status changed", "id", id, "status", status)
	return nil
}

// DeleteProposal removes the proposal; documents and commission cascade.
func (r *Repository) DeleteProposal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM propostas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("delete proposal %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Proposal deleted", "id", id)
	return nil
}
