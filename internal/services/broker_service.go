package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"contratandoplanos/internal/core"
	"contratandoplanos/internal/ports"
)

// BrokerRepository is the part of the store broker accounts need.
type BrokerRepository interface {
	ports.BrokerStore
	ListProposals(ctx context.Context, f ports.ProposalFilter) ([]core.Proposal, error)
	ListCommissions(ctx context.Context, f ports.CommissionFilter) ([]core.Commission, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]core.Product, error)
	ListBrokerDocuments(ctx context.Context, brokerID string) ([]core.Document, error)
}

// PasswordHasher hashes and checks account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

type BrokerService struct {
	store   BrokerRepository
	objects ports.ObjectStorage
	hasher  PasswordHasher
	now     clock
}

func NewBrokerService(store BrokerRepository, objects ports.ObjectStorage, hasher PasswordHasher) *BrokerService {
	return &BrokerService{store: store, objects: objects, hasher: hasher, now: time.Now}
}

// Registration is the self sign-up form of a broker.
type Registration struct {
	Name     string
	Email    string
	Phone    string
	CPF      string
	Password string
}

// Register stores a new broker awaiting approval.
func (s *BrokerService) Register(ctx context.Context, r Registration) (core.Broker, error) {
	b := core.Broker{
		ID:        newID(),
		Name:      strings.TrimSpace(r.Name),
		Email:     strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:     core.NormalizePhone(r.Phone),
		CPF:       strings.Map(keepDigit, r.CPF),
		Status:    core.BrokerPending,
		CreatedAt: s.now().UTC(),
	}
	if err := b.Validate(); err != nil {
		return core.Broker{}, err
	}

	if _, err := s.store.GetBrokerByEmail(ctx, b.Email); err == nil {
		return core.Broker{}, ErrEmailTaken
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Broker{}, err
	}

	hash, err := s.hasher.Hash(r.Password)
	if err != nil {
		return core.Broker{}, err
	}
	b.PasswordHash = hash

	if err := s.store.CreateBroker(ctx, b); err != nil {
		return core.Broker{}, fmt.Errorf("register broker: %w", err)
	}
	return b, nil
}

// Authenticate checks the credentials. Pending brokers authenticate and are
// sent to the waiting page; rejected ones are refused.
func (s *BrokerService) Authenticate(ctx context.Context, email, password string) (core.Broker, error) {
	b, err := s.store.GetBrokerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Broker{}, ErrInvalidCredentials
		}
		return core.Broker{}, err
	}
	if err := s.hasher.Verify(password, b.PasswordHash); err != nil {
		slog.WarnContext(ctx, "Broker login failed", "broker_id", b.ID)
		return core.Broker{}, ErrInvalidCredentials
	}
	if b.Status == core.BrokerRejected {
		return core.Broker{}, ErrBrokerRejected
	}
	return b, nil
}

func (s *BrokerService) Get(ctx context.Context, id string) (core.Broker, error) {
	return s.store.GetBroker(ctx, id)
}

// Dashboard loads the broker's records concurrently and aggregates them
// relative to now.
func (s *BrokerService) Dashboard(ctx context.Context, brokerID string, now time.Time) (core.BrokerStats, error) {
	var (
		proposals   []core.Proposal
		commissions []core.Commission
		products    []core.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		proposals, err = s.store.ListProposals(gctx, ports.ProposalFilter{BrokerID: brokerID})
		return err
	})
	g.Go(func() (err error) {
		commissions, err = s.store.ListCommissions(gctx, ports.CommissionFilter{BrokerID: brokerID})
		return err
	})
	g.Go(func() (err error) {
		products, err = s.store.ListProducts(gctx, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.BrokerStats{}, fmt.Errorf("load dashboard: %w", err)
	}

	proposals = core.JoinProducts(proposals, products)
	return core.ComputeBrokerStats(proposals, commissions, now), nil
}

// UpdatePhoto stores a new profile photo and points the broker at it. The
// previous photo is removed best effort.
func (s *BrokerService) UpdatePhoto(ctx context.Context, brokerID string, up Upload) (string, error) {
	if err := core.ValidateImage(up.Size, up.ContentType); err != nil {
		return "", err
	}
	b, err := s.store.GetBroker(ctx, brokerID)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("corretores/%s/foto-%s%s", brokerID, newID(), core.UploadExtension(up.ContentType))
	url, err := s.objects.Put(ctx, key, up.ContentType, up.Body, up.Size)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	if err := s.store.SetBrokerPhoto(ctx, brokerID, url); err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			slog.WarnContext(ctx, "Failed to remove orphan photo", "key", key, "error", derr)
		}
		return "", err
	}

	if old := s.keyFromURL(b.PhotoURL); old != "" {
		if err := s.objects.Delete(ctx, old); err != nil {
			slog.WarnContext(ctx, "Failed to remove previous photo", "key", old, "error", err)
		}
	}
	return url, nil
}

// keyFromURL recovers the object key of a URL this storage produced.
func (s *BrokerService) keyFromURL(url string) string {
	if url == "" {
		return ""
	}
	prefix := s.objects.PublicURL("")
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

// SetStatus approves or rejects a broker.
func (s *BrokerService) SetStatus(ctx context.Context, id string, status core.BrokerStatus) error {
	if !status.Valid() {
		return core.ErrInvalidStatus
	}
	return s.store.SetBrokerStatus(ctx, id, status, s.now().UTC())
}

func (s *BrokerService) List(ctx context.Context, status core.BrokerStatus) ([]core.Broker, error) {
	return s.store.ListBrokers(ctx, status)
}

// Delete removes the broker's files, then the broker; their rows cascade.
func (s *BrokerService) Delete(ctx context.Context, id string) error {
	b, err := s.store.GetBroker(ctx, id)
	if err != nil {
		return err
	}
	docs, err := s.store.ListBrokerDocuments(ctx, id)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(docs)+1)
	for _, d := range docs {
		keys = append(keys, d.Key)
	}
	if k := s.keyFromURL(b.PhotoURL); k != "" {
		keys = append(keys, k)
	}
	for _, k := range keys {
		if err := s.objects.Delete(ctx, k); err != nil {
			slog.WarnContext(ctx, "Failed to remove stored object", "key", k, "error", err)
		}
	}
	return s.store.DeleteBroker(ctx, id)
}

func keepDigit(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}
