package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"contratandoplanos/internal/core"
)

// CreatePriceTable stores the table header and its rows in position order.
func (r *Repository) CreatePriceTable(ctx context.Context, t core.PriceTable) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tabelas_precos (id, name, carrier, product_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
			t.ID, t.Name, t.Carrier, nullString(t.ProductID), t.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert price table: %w", err)
		}
		for i, row := range t.Rows {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO tabelas_precos_faixas (table_id, position, age_range, price_cents) VALUES ($1, $2, $3, $4)`,
				t.ID, i, row.AgeRange, row.Price.Cents)
			if err != nil {
				return fmt.Errorf("insert price row %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Price table created", "id", t.ID, "rows", len(t.Rows))
	return nil
}

func (r *Repository) GetPriceTable(ctx context.Context, id string) (core.PriceTable, error) {
	var (
		t       core.PriceTable
		product sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, carrier, product_id, created_at FROM tabelas_precos WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Carrier, &product, &t.CreatedAt)
	if err != nil {
		return core.PriceTable{}, fmt.Errorf("get price table %s: %w", id, notFound(err))
	}
	t.ProductID = product.String

	rows, err := r.db.QueryContext(ctx,
		`SELECT age_range, price_cents FROM tabelas_precos_faixas WHERE table_id = $1 ORDER BY position`, id)
	if err != nil {
		return core.PriceTable{}, fmt.Errorf("list price rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row core.PriceRow
		if err := rows.Scan(&row.AgeRange, &row.Price.Cents); err != nil {
			return core.PriceTable{}, fmt.Errorf("scan price row: %w", err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

// ListPriceTables returns table headers only, ordered by carrier and name.
func (r *Repository) ListPriceTables(ctx context.Context) ([]core.PriceTable, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, carrier, product_id, created_at FROM tabelas_precos ORDER BY carrier, name`)
	if err != nil {
		return nil, fmt.Errorf("list price tables: %w", err)
	}
	defer rows.Close()

	var tables []core.PriceTable
	for rows.Next() {
		var (
			t       core.PriceTable
			product sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Carrier, &product, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price table: %w", err)
		}
		t.ProductID = product.String
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (r *Repository) DeletePriceTable(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tabelas_precos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete price table: %w", err)
	}
	if err := expectRow(res); err != nil {
		return fmt.Errorf("delete price table %s: %w", id, err)
	}
	return nil
}
