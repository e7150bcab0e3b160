package storage

import (
	"context"
	"database/sql"
	"fmt"

	"contratandoplanos/internal/core"
)

const documentColumns = `id, proposal_id, broker_id, kind, storage_key, file_name, content_type, size_bytes, created_at`

func scanDocument(s scanner) (core.Document, error) {
	var (
		d    core.Document
		kind string
	)
	if err := s.Scan(&d.ID, &d.ProposalID, &d.BrokerID, &kind, &d.Key, &d.FileName, &d.ContentType, &d.Size, &d.CreatedAt); err != nil {
		return core.Document{}, err
	}
	d.Kind = core.DocumentKind(kind)
	return d, nil
}

func insertDocument(ctx context.Context, tx *sql.Tx, d core.Document) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO documentos (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.ProposalID, d.BrokerID, string(d.Kind), d.Key, d.FileName, d.ContentType, d.Size, d.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert document %s: %w", d.Kind, err)
	}
	return nil
}

func (r *Repository) queryDocuments(ctx context.Context, query string, args ...any) ([]core.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *Repository) ListDocuments(ctx context.Context, proposalID string) ([]core.Document, error) {
	return r.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documentos WHERE proposal_id = $1 ORDER BY created_at, kind`, proposalID)
}

func (r *Repository) ListBrokerDocuments(ctx context.Context, brokerID string) ([]core.Document, error) {
	return r.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documentos WHERE broker_id = $1 ORDER BY created_at DESC`, brokerID)
}

// ListAllDocuments returns the newest documents across all brokers.
func (r *Repository) ListAllDocuments(ctx context.Context, limit int) ([]core.Document, error) {
	return r.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documentos ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *Repository) GetDocument(ctx context.Context, id string) (core.Document, error) {
	d, err := scanDocument(r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documentos WHERE id = $1`, id))
	if err != nil {
		return core.Document{}, fmt.Errorf("get document %s: %w", id, notFound(err))
	}
	return d, nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documentos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}
