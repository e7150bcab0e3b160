package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contratandoplanos/internal/core"
	"contratandoplanos/internal/ports"
)

type AdminService struct {
	store  ports.AdminStore
	hasher PasswordHasher
	now    clock
}

func NewAdminService(store ports.AdminStore, hasher PasswordHasher) *AdminService {
	return &AdminService{store: store, hasher: hasher, now: time.Now}
}

func (s *AdminService) Authenticate(ctx context.Context, email, password string) (core.Admin, error) {
	a, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Admin{}, ErrInvalidCredentials
		}
		return core.Admin{}, err
	}
	if err := s.hasher.Verify(password, a.PasswordHash); err != nil {
		return core.Admin{}, ErrInvalidCredentials
	}
	return a, nil
}

// CreateAdmin bootstraps a back-office account.
func (s *AdminService) CreateAdmin(ctx context.Context, name, email, password string) (core.Admin, error) {
	a := core.Admin{
		ID:        newID(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: s.now().UTC(),
	}
	if a.Name == "" {
		return core.Admin{}, core.ErrEmptyName
	}
	if a.Email == "" || !strings.Contains(a.Email, "@") {
		return core.Admin{}, core.ErrInvalidEmail
	}
	if _, err := s.store.GetAdminByEmail(ctx, a.Email); err == nil {
		return core.Admin{}, ErrEmailTaken
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Admin{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return core.Admin{}, err
	}
	a.PasswordHash = hash
	if err := s.store.CreateAdmin(ctx, a); err != nil {
		return core.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}
