package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"contratandoplanos/internal/core"
	"contratandoplanos/internal/ports"
)

// ProposalRepository is the part of the store proposals need.
type ProposalRepository interface {
	ports.ProposalStore
	ports.DocumentStore
	GetProduct(ctx context.Context, id string) (core.Product, error)
}

type ProposalService struct {
	store   ProposalRepository
	objects ports.ObjectStorage
	now     clock
}

func NewProposalService(store ProposalRepository, objects ports.ObjectStorage) *ProposalService {
	return &ProposalService{store: store, objects: objects, now: time.Now}
}

// DocumentLink pairs a document with a download URL. URL is empty when the
// link could not be resolved.
type DocumentLink struct {
	Document core.Document
	URL      string
}

// Submit validates the proposal and one upload per document kind, uploads the
// files concurrently and stores everything. Objects already uploaded are
// removed when a later step fails.
func (s *ProposalService) Submit(ctx context.Context, p core.Proposal, uploads map[core.DocumentKind]Upload) (core.Proposal, error) {
	now := s.now().UTC()
	p.ID = newID()
	p.Status = core.ProposalPending
	p.ClientPhone = core.NormalizePhone(p.ClientPhone)
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := p.Validate(); err != nil {
		return core.Proposal{}, err
	}
	if _, err := s.store.GetProduct(ctx, p.ProductID); err != nil {
		return core.Proposal{}, fmt.Errorf("product: %w", err)
	}

	docs := make([]core.Document, 0, len(uploads))
	for _, kind := range core.DocumentKinds() {
		up, ok := uploads[kind]
		if !ok {
			return core.Proposal{}, fmt.Errorf("%s: %w", kind.Label(), ErrMissingDocument)
		}
		if err := core.ValidateUpload(up.Size, up.ContentType); err != nil {
			return core.Proposal{}, fmt.Errorf("%s: %w", kind.Label(), err)
		}
		docs = append(docs, core.Document{
			ID:          newID(),
			ProposalID:  p.ID,
			BrokerID:    p.BrokerID,
			Kind:        kind,
			Key:         fmt.Sprintf("propostas/%s/%s-%s%s", p.ID, kind, newID(), core.UploadExtension(up.ContentType)),
			FileName:    up.FileName,
			ContentType: up.ContentType,
			Size:        up.Size,
			CreatedAt:   now,
		})
	}

	uploaded := make([]bool, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range docs {
		up := uploads[d.Kind]
		g.Go(func() error {
			if _, err := s.objects.Put(gctx, d.Key, d.ContentType, up.Body, d.Size); err != nil {
				return fmt.Errorf("upload %s: %w", d.Kind, err)
			}
			uploaded[i] = true
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = s.store.CreateProposal(ctx, p, docs)
	}
	if err != nil {
		for i, d := range docs {
			if uploaded[i] {
				s.removeObject(ctx, d.Key)
			}
		}
		return core.Proposal{}, err
	}

	slog.InfoContext(ctx, "Proposal submitted", "id", p.ID, "broker_id", p.BrokerID)
	return p, nil
}

// SetStatus changes the proposal status. Approving creates the pending
// commission at the product's rate; the store keeps a single one per proposal.
func (s *ProposalService) SetStatus(ctx context.Context, id string, status core.ProposalStatus) error {
	if !status.Valid() {
		return core.ErrInvalidStatus
	}
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	var commission *core.Commission
	if status == core.ProposalApproved {
		product, err := s.store.GetProduct(ctx, p.ProductID)
		if err != nil {
			return fmt.Errorf("product for commission: %w", err)
		}
		commission = &core.Commission{
			ID:         newID(),
			BrokerID:   p.BrokerID,
			ProposalID: p.ID,
			Amount:     p.Value.Percent(product.CommissionBps),
			Status:     core.CommissionPending,
			CreatedAt:  now,
		}
	}
	return s.store.UpdateProposalStatus(ctx, id, status, now, commission)
}

// Delete removes the stored files, then the proposal with its rows.
func (s *ProposalService) Delete(ctx context.Context, id string) error {
	docs, err := s.store.ListDocuments(ctx, id)
	if err != nil {
		return err
	}
	for _, d := range docs {
		s.removeObject(ctx, d.Key)
	}
	return s.store.DeleteProposal(ctx, id)
}

// DeleteDocument removes one document file and its row.
func (s *ProposalService) DeleteDocument(ctx context.Context, id string) error {
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	s.removeObject(ctx, d.Key)
	return s.store.DeleteDocument(ctx, id)
}

// DocumentLinks resolves the download links of a proposal's documents at once.
func (s *ProposalService) DocumentLinks(ctx context.Context, proposalID string) ([]DocumentLink, error) {
	docs, err := s.store.ListDocuments(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return s.Links(ctx, docs), nil
}

// Links resolves signed URLs concurrently. Failed links are logged and left empty.
func (s *ProposalService) Links(ctx context.Context, docs []core.Document) []DocumentLink {
	links := make([]DocumentLink, len(docs))
	var g errgroup.Group
	for i, d := range docs {
		links[i].Document = d
		g.Go(func() error {
			url, err := s.objects.SignedURL(ctx, d.Key, DocumentLinkTTL)
			if err != nil {
				slog.WarnContext(ctx, "Failed to sign document link", "document_id", d.ID, "error", err)
				return nil
			}
			links[i].URL = url
			return nil
		})
	}
	_ = g.Wait()
	return links
}

func (s *ProposalService) removeObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "Failed to remove stored object", "key", key, "error", err)
	}
}
