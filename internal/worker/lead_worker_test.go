package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contratandoplanos/internal/amqp"
	"contratandoplanos/internal/core"
)

type fakeLeads struct {
	mu     sync.Mutex
	leads  map[string]core.Lead
	order  []string
	marked []string
}

func newFakeLeads(leads ...core.Lead) *fakeLeads {
	f := &fakeLeads{leads: map[string]core.Lead{}}
	for _, l := range leads {
		f.leads[l.ID] = l
		f.order = append(f.order, l.ID)
	}
	return f
}

func (f *fakeLeads) GetLead(_ context.Context, id string) (core.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return core.Lead{}, core.ErrNotFound
	}
	return l, nil
}

func (f *fakeLeads) ListUnsyncedLeads(_ context.Context, limit int) ([]core.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Lead
	for _, id := range f.order {
		if l := f.leads[id]; !l.Synced() && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeads) MarkLeadSynced(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.leads[id]
	l.SyncedAt = &at
	f.leads[id] = l
	f.marked = append(f.marked, id)
	return nil
}

type fakeExporter struct {
	exported []string
	failOn   string
}

func (e *fakeExporter) ExportLead(_ context.Context, l core.Lead) error {
	if l.ID == e.failOn {
		return errors.New("sheets unavailable")
	}
	e.exported = append(e.exported, l.ID)
	return nil
}

type fakeNotifier struct {
	notified []string
	err      error
}

func (n *fakeNotifier) NotifyLead(_ context.Context, l core.Lead) error {
	n.notified = append(n.notified, l.ID)
	return n.err
}

func lead(id string) core.Lead {
	return core.Lead{ID: id, Name: "Lead " + id, Email: id + "@example.com", Phone: "11987654321", PlanType: core.PlanIndividual, Lives: 1}
}

func TestHandleLeadMessage(t *testing.T) {
	store := newFakeLeads(lead("l1"))
	exp := &fakeExporter{}
	notif := &fakeNotifier{}
	w := NewLeadWorker(store, exp, notif, 10)

	require.NoError(t, w.HandleLeadMessage(context.Background(), amqp.NewLeadCapturedMessage("l1")))
	assert.Equal(t, []string{"l1"}, exp.exported)
	assert.Equal(t, []string{"l1"}, notif.notified)
	assert.Equal(t, []string{"l1"}, store.marked)

	// redelivery is a no-op
	require.NoError(t, w.HandleLeadMessage(context.Background(), amqp.NewLeadCapturedMessage("l1")))
	assert.Len(t, exp.exported, 1)
}

func TestHandleLeadMessageMissingLead(t *testing.T) {
	w := NewLeadWorker(newFakeLeads(), &fakeExporter{}, nil, 10)
	err := w.HandleLeadMessage(context.Background(), amqp.NewLeadCapturedMessage("ghost"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExportFailureLeavesLeadPending(t *testing.T) {
	store := newFakeLeads(lead("l1"))
	w := NewLeadWorker(store, &fakeExporter{failOn: "l1"}, nil, 10)

	err := w.HandleLeadMessage(context.Background(), amqp.NewLeadCapturedMessage("l1"))
	require.Error(t, err)
	assert.Empty(t, store.marked)
}

func TestNotificationFailureStillMarksSynced(t *testing.T) {
	store := newFakeLeads(lead("l1"))
	w := NewLeadWorker(store, &fakeExporter{}, &fakeNotifier{err: errors.New("smtp down")}, 10)

	require.NoError(t, w.HandleLeadMessage(context.Background(), amqp.NewLeadCapturedMessage("l1")))
	assert.Equal(t, []string{"l1"}, store.marked)
}

func TestProcessPendingLeads(t *testing.T) {
	store := newFakeLeads(lead("l1"), lead("l2"), lead("l3"))
	exp := &fakeExporter{failOn: "l2"}
	w := NewLeadWorker(store, exp, nil, 10)

	require.NoError(t, w.ProcessPendingLeads(context.Background()))
	assert.Equal(t, []string{"l1", "l3"}, exp.exported)

	pending, err := store.ListUnsyncedLeads(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "l2", pending[0].ID)
}

func TestProcessPendingLeadsRespectsBatchSize(t *testing.T) {
	store := newFakeLeads(lead("l1"), lead("l2"), lead("l3"))
	exp := &fakeExporter{}
	w := NewLeadWorker(store, exp, nil, 2)

	require.NoError(t, w.ProcessPendingLeads(context.Background()))
	assert.Len(t, exp.exported, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newFakeLeads(lead("l1"))
	exp := &fakeExporter{}
	w := NewLeadWorker(store, exp, nil, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, time.Hour) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.marked) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
