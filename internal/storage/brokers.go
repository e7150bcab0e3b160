package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contratandoplanos/internal/core"
)

const brokerColumns = `id, name, email, phone, cpf, password_hash, status, photo_url, created_at, approved_at`

func scanBroker(s scanner) (core.Broker, error) {
	var (
		b        core.Broker
		status   string
		photo    sql.NullString
		approved sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.CPF, &b.PasswordHash, &status, &photo, &b.CreatedAt, &approved); err != nil {
		return core.Broker{}, err
	}
	b.Status = core.BrokerStatus(status)
	b.PhotoURL = photo.String
	b.ApprovedAt = timePtr(approved)
	return b, nil
}

func (r *Repository) CreateBroker(ctx context.Context, b core.Broker) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO corretores (`+brokerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.Name, strings.ToLower(b.Email), b.Phone, b.CPF, b.PasswordHash, string(b.Status),
		nullString(b.PhotoURL), b.CreatedAt.UTC(), nullTime(b.ApprovedAt))
	if err != nil {
		return fmt.Errorf("insert broker: %w", err)
	}
	slog.InfoContext(ctx, "Broker registered", "id", b.ID, "status", b.Status)
	return nil
}

func (r *Repository) GetBroker(ctx context.Context, id string) (core.Broker, error) {
	b, err := scanBroker(r.db.QueryRowContext(ctx, `SELECT `+brokerColumns+` FROM corretores WHERE id = $1`, id))
	if err != nil {
		return core.Broker{}, fmt.Errorf("get broker %s: %w", id, notFound(err))
	}
	return b, nil
}

func (r *Repository) GetBrokerByEmail(ctx context.Context, email string) (core.Broker, error) {
	b, err := scanBroker(r.db.QueryRowContext(ctx,
		`SELECT `+brokerColumns+` FROM corretores WHERE email = $1`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return core.Broker{}, fmt.Errorf("get broker by email: %w", notFound(err))
	}
	return b, nil
}

// ListBrokers returns brokers newest first. An empty status lists all of them.
func (r *Repository) ListBrokers(ctx context.Context, status core.BrokerStatus) ([]core.Broker, error) {
	query := `SELECT ` + brokerColumns + ` FROM corretores`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list brokers: %w", err)
	}
	defer rows.Close()

	var brokers []core.Broker
	for rows.Next() {
		b, err := scanBroker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan broker: %w", err)
		}
		brokers = append(brokers, b)
	}
	return brokers, rows.Err()
}

// SetBrokerStatus records the new status. approved_at is set when the broker
// is approved and cleared otherwise.
func (r *Repository) SetBrokerStatus(ctx context.Context, id string, status core.BrokerStatus, at time.Time) error {
	var approvedAt any
	if status == core.BrokerApproved {
		approvedAt = at.UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE corretores SET status = $1, approved_at = $2 WHERE id = $3`, string(status), approvedAt, id)
	if err != nil {
		return fmt.Errorf("update broker status: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("update broker status %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Broker status changed", "id", id, "status", status)
	return nil
}

func (r *Repository) SetBrokerPhoto(ctx context.Context, id, photoURL string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE corretores SET photo_url = $1 WHERE id = $2`, nullString(photoURL), id)
	if err != nil {
		return fmt.Errorf("update broker photo: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("update broker photo %s: %w", id, err)
	}
	return nil
}

// DeleteBroker removes the broker; proposals, documents and commissions cascade.
func (r *Repository) DeleteBroker(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM corretores WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete broker: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("delete broker %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Broker deleted", "id", id)
	return nil
}
