package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"contratandoplanos/internal/core"
)

const adminColumns = `id, name, email, password_hash, created_at`

func scanAdmin(s scanner) (core.Admin, error) {
	var a core.Admin
	err := s.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt)
	return a, err
}

func (r *Repository) CreateAdmin(ctx context.Context, a core.Admin) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (`+adminColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Name, strings.ToLower(a.Email), a.PasswordHash, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	slog.InfoContext(ctx, "Admin created", "id", a.ID)
	return nil
}

func (r *Repository) GetAdmin(ctx context.Context, id string) (core.Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
	if err != nil {
		return core.Admin{}, fmt.Errorf("get admin %s: %w", id, notFound(err))
	}
	return a, nil
}

func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (core.Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE email = $1`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return core.Admin{}, fmt.Errorf("get admin by email: %w", notFound(err))
	}
	return a, nil
}
