package storage

import (
	"context"
	"fmt"
	"log/slog"

	"contratandoplanos/internal/core"
)

const productColumns = `id, name, carrier, description, commission_bps, active, created_at`

func scanProduct(s scanner) (core.Product, error) {
	var p core.Product
	err := s.Scan(&p.ID, &p.Name, &p.Carrier, &p.Description, &p.CommissionBps, &p.Active, &p.CreatedAt)
	return p, err
}

func (r *Repository) CreateProduct(ctx context.Context, p core.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO produtos (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Carrier, p.Description, p.CommissionBps, p.Active, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	slog.InfoContext(ctx, "Product created", "id", p.ID, "name", p.Name)
	return nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p core.Product) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE produtos SET name = $1, carrier = $2, description = $3, commission_bps = $4, active = $5 WHERE id = $6`,
		p.Name, p.Carrier, p.Description, p.CommissionBps, p.Active, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (core.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM produtos WHERE id = $1`, id))
	if err != nil {
		return core.Product{}, fmt.Errorf("get product %s: %w", id, notFound(err))
	}
	return p, nil
}

// ListProducts returns products ordered by name.
func (r *Repository) ListProducts(ctx context.Context, activeOnly bool) ([]core.Product, error) {
	query := `SELECT ` + productColumns + ` FROM produtos`
	var args []any
	if activeOnly {
		query += ` WHERE active = $1`
		args = append(args, true)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
