// Package ports declares the interfaces between the HTTP layer, the services
// and the adapters (database, object storage, messaging, export).
package ports

import (
	"context"
	"io"
	"time"

	"contratandoplanos/internal/core"
)

type BrokerStore interface {
	CreateBroker(ctx context.Context, b core.Broker) error
	GetBroker(ctx context.Context, id string) (core.Broker, error)
	GetBrokerByEmail(ctx context.Context, email string) (core.Broker, error)
	ListBrokers(ctx context.Context, status core.BrokerStatus) ([]core.Broker, error)
	SetBrokerStatus(ctx context.Context, id string, status core.BrokerStatus, at time.Time) error
	SetBrokerPhoto(ctx context.Context, id, photoURL string) error
	DeleteBroker(ctx context.Context, id string) error
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, a core.Admin) error
	GetAdmin(ctx context.Context, id string) (core.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (core.Admin, error)
}

type ProductStore interface {
	CreateProduct(ctx context.Context, p core.Product) error
	UpdateProduct(ctx context.Context, p core.Product) error
	GetProduct(ctx context.Context, id string) (core.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]core.Product, error)
}

// ProposalFilter narrows proposal listings; empty fields match everything.
type ProposalFilter struct {
	BrokerID string
	Status   core.ProposalStatus
}

type ProposalStore interface {
	CreateProposal(ctx context.Context, p core.Proposal, docs []core.Document) error
	GetProposal(ctx context.Context, id string) (core.Proposal, error)
	ListProposals(ctx context.Context, f ProposalFilter) ([]core.Proposal, error)
	// UpdateProposalStatus patches the status. A non-nil commission is
	// inserted in the same transaction unless the proposal already has one;
	// leaving the approved status drops an unpaid commission.
	UpdateProposalStatus(ctx context.Context, id string, status core.ProposalStatus, at time.Time, commission *core.Commission) error
	DeleteProposal(ctx context.Context, id string) error
}

type DocumentStore interface {
	ListDocuments(ctx context.Context, proposalID string) ([]core.Document, error)
	ListBrokerDocuments(ctx context.Context, brokerID string) ([]core.Document, error)
	ListAllDocuments(ctx context.Context, limit int) ([]core.Document, error)
	GetDocument(ctx context.Context, id string) (core.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

type CommissionFilter struct {
	BrokerID string
	Status   core.CommissionStatus
}

type CommissionStore interface {
	ListCommissions(ctx context.Context, f CommissionFilter) ([]core.Commission, error)
	GetCommission(ctx context.Context, id string) (core.Commission, error)
	MarkCommissionPaid(ctx context.Context, id string, paidAt time.Time) error
}

type PriceTableStore interface {
	CreatePriceTable(ctx context.Context, t core.PriceTable) error
	GetPriceTable(ctx context.Context, id string) (core.PriceTable, error)
	ListPriceTables(ctx context.Context) ([]core.PriceTable, error)
	DeletePriceTable(ctx context.Context, id string) error
}

type LeadStore interface {
	CreateLead(ctx context.Context, l core.Lead) error
	GetLead(ctx context.Context, id string) (core.Lead, error)
	ListLeads(ctx context.Context, limit int) ([]core.Lead, error)
	ListUnsyncedLeads(ctx context.Context, limit int) ([]core.Lead, error)
	MarkLeadSynced(ctx context.Context, id string, at time.Time) error
}

// Store is everything the web server reads and writes.
type Store interface {
	BrokerStore
	AdminStore
	ProductStore
	ProposalStore
	DocumentStore
	CommissionStore
	PriceTableStore
	LeadStore
	Ping(ctx context.Context) error
}

// ObjectStorage keeps uploaded files.
type ObjectStorage interface {
	// Put stores body under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	// Get opens the object and returns its content type.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited download link for a private object.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

type LeadPublisher interface {
	PublishLeadCaptured(ctx context.Context, leadID string) error
}

type LeadExporter interface {
	ExportLead(ctx context.Context, lead core.Lead) error
}

type LeadNotifier interface {
	NotifyLead(ctx context.Context, lead core.Lead) error
}
