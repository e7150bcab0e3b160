package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"contratandoplanos/internal/core"
	"contratandoplanos/internal/ports"
)

// memStore is a map-backed store covering what the services call.
type memStore struct {
	mu          sync.Mutex
	brokers     map[string]core.Broker
	admins      map[string]core.Admin
	products    map[string]core.Product
	proposals   map[string]core.Proposal
	documents   map[string]core.Document
	commissions map[string]core.Commission
	leads       map[string]core.Lead
	failCreate  error
}

func newMemStore() *memStore {
	return &memStore{
		brokers:     map[string]core.Broker{},
		admins:      map[string]core.Admin{},
		products:    map[string]core.Product{},
		proposals:   map[string]core.Proposal{},
		documents:   map[string]core.Document{},
		commissions: map[string]core.Commission{},
		leads:       map[string]core.Lead{},
	}
}

func (m *memStore) CreateBroker(_ context.Context, b core.Broker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brokers[b.ID] = b
	return nil
}

func (m *memStore) GetBroker(_ context.Context, id string) (core.Broker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brokers[id]
	if !ok {
		return core.Broker{}, core.ErrNotFound
	}
	return b, nil
}

func (m *memStore) GetBrokerByEmail(_ context.Context, email string) (core.Broker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.brokers {
		if b.Email == strings.ToLower(email) {
			return b, nil
		}
	}
	return core.Broker{}, core.ErrNotFound
}

func (m *memStore) ListBrokers(_ context.Context, status core.BrokerStatus) ([]core.Broker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Broker
	for _, b := range m.brokers {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) SetBrokerStatus(_ context.Context, id string, status core.BrokerStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brokers[id]
	if !ok {
		return core.ErrNotFound
	}
	b.Status = status
	b.ApprovedAt = nil
	if status == core.BrokerApproved {
		b.ApprovedAt = &at
	}
	m.brokers[id] = b
	return nil
}

func (m *memStore) SetBrokerPhoto(_ context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brokers[id]
	if !ok {
		return core.ErrNotFound
	}
	b.PhotoURL = url
	m.brokers[id] = b
	return nil
}

func (m *memStore) DeleteBroker(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.brokers[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.brokers, id)
	for pid, p := range m.proposals {
		if p.BrokerID == id {
			delete(m.proposals, pid)
		}
	}
	for did, d := range m.documents {
		if d.BrokerID == id {
			delete(m.documents, did)
		}
	}
	return nil
}

func (m *memStore) CreateAdmin(_ context.Context, a core.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[a.ID] = a
	return nil
}

func (m *memStore) GetAdmin(_ context.Context, id string) (core.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return core.Admin{}, core.ErrNotFound
	}
	return a, nil
}

func (m *memStore) GetAdminByEmail(_ context.Context, email string) (core.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Email == strings.ToLower(email) {
			return a, nil
		}
	}
	return core.Admin{}, core.ErrNotFound
}

func (m *memStore) GetProduct(_ context.Context, id string) (core.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return core.Product{}, core.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListProducts(_ context.Context, activeOnly bool) ([]core.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Product
	for _, p := range m.products {
		if !activeOnly || p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CreateProposal(_ context.Context, p core.Proposal, docs []core.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.proposals[p.ID] = p
	for _, d := range docs {
		m.documents[d.ID] = d
	}
	return nil
}

func (m *memStore) GetProposal(_ context.Context, id string) (core.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return core.Proposal{}, core.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListProposals(_ context.Context, f ports.ProposalFilter) ([]core.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Proposal
	for _, p := range m.proposals {
		if (f.BrokerID == "" || p.BrokerID == f.BrokerID) && (f.Status == "" || p.Status == f.Status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdateProposalStatus(_ context.Context, id string, status core.ProposalStatus, at time.Time, c *core.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return core.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = at
	m.proposals[id] = p

	var existing string
	for cid, mc := range m.commissions {
		if mc.ProposalID == id {
			existing = cid
		}
	}
	if status != core.ProposalApproved {
		if existing != "" && m.commissions[existing].Status == core.CommissionPending {
			delete(m.commissions, existing)
		}
		return nil
	}
	if c != nil && existing == "" {
		m.commissions[c.ID] = *c
	}
	return nil
}

func (m *memStore) DeleteProposal(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proposals[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.proposals, id)
	for did, d := range m.documents {
		if d.ProposalID == id {
			delete(m.documents, did)
		}
	}
	return nil
}

func (m *memStore) ListDocuments(_ context.Context, proposalID string) ([]core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Document
	for _, d := range m.documents {
		if d.ProposalID == proposalID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (m *memStore) ListBrokerDocuments(_ context.Context, brokerID string) ([]core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Document
	for _, d := range m.documents {
		if d.BrokerID == brokerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) ListAllDocuments(_ context.Context, _ int) ([]core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Document
	for _, d := range m.documents {
		out = append(out, d)
	}
	return out, nil
}

func (m *memStore) GetDocument(_ context.Context, id string) (core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return core.Document{}, core.ErrNotFound
	}
	return d, nil
}

func (m *memStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	return nil
}

func (m *memStore) ListCommissions(_ context.Context, f ports.CommissionFilter) ([]core.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Commission
	for _, c := range m.commissions {
		if (f.BrokerID == "" || c.BrokerID == f.BrokerID) && (f.Status == "" || c.Status == f.Status) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) CreateLead(_ context.Context, l core.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[l.ID] = l
	return nil
}

func (m *memStore) GetLead(_ context.Context, id string) (core.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return core.Lead{}, core.ErrNotFound
	}
	return l, nil
}

func (m *memStore) ListLeads(_ context.Context, _ int) ([]core.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Lead
	for _, l := range m.leads {
		out = append(out, l)
	}
	return out, nil
}

func (m *memStore) ListUnsyncedLeads(ctx context.Context, limit int) ([]core.Lead, error) {
	return m.ListLeads(ctx, limit)
}

func (m *memStore) MarkLeadSynced(_ context.Context, _ string, _ time.Time) error {
	return nil
}

// memObjects is an in-memory ObjectStorage.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut string
	deleted []string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (o *memObjects) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if o.failPut != "" && strings.Contains(key, o.failPut) {
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = data
	return o.PublicURL(key), nil
}

func (o *memObjects) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), "application/octet-stream", nil
}

func (o *memObjects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	o.deleted = append(o.deleted, key)
	return nil
}

func (o *memObjects) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if strings.Contains(key, "unsignable") {
		return "", errors.New("presign failed")
	}
	return "https://signed.example.com/" + key, nil
}

func (o *memObjects) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func (o *memObjects) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

// plainHasher prefixes the password; enough to tell right from wrong.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) {
	if len(p) < 8 {
		return "", errors.New("password too short")
	}
	return "h:" + p, nil
}

func (plainHasher) Verify(p, hash string) error {
	if hash != "h:"+p {
		return errors.New("mismatch")
	}
	return nil
}

type stripTags struct{}

func (stripTags) PlainText(s string) string {
	s = strings.ReplaceAll(s, "<b>", "")
	s = strings.ReplaceAll(s, "</b>", "")
	return strings.TrimSpace(s)
}

type recordingPublisher struct {
	ids []string
	err error
}

func (p *recordingPublisher) PublishLeadCaptured(_ context.Context, id string) error {
	p.ids = append(p.ids, id)
	return p.err
}

func fixedClock(t time.Time) clock {
	return func() time.Time { return t }
}
