package offline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Get and Store.Update for unknown ids.
var ErrNotFound = errors.New("offline invoice record not found")

// Filter selects records for listing. Zero fields are ignored.
type Filter struct {
	Statuses            []Status
	SubmitByBefore      time.Time
	MaintenanceWindowID string
	SellerNip           string
}

// Patch is a partial record update. Nil fields stay unchanged.
type Patch struct {
	Status          *Status
	ReferenceNumber *string
	SubmittedAt     *time.Time
	SubmitBy        *time.Time
	Error           *ErrorInfo
}

// Store is the storage contract for offline invoice records: a single-writer
// keyed map with read-modify-write partial updates. Implementations adding
// concurrent writers must provide their own per-record locking.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, error)
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
}

// Matches reports whether the record passes the filter.
func (f Filter) Matches(r *Record) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.SubmitByBefore.IsZero() && r.SubmitBy.After(f.SubmitByBefore) {
		return false
	}
	if f.MaintenanceWindowID != "" && r.MaintenanceWindowID != f.MaintenanceWindowID {
		return false
	}
	if f.SellerNip != "" && r.SellerNip != f.SellerNip {
		return false
	}
	return true
}

// Apply merges the patch into the record.
func (p Patch) Apply(r *Record) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ReferenceNumber != nil {
		r.ReferenceNumber = *p.ReferenceNumber
	}
	if p.SubmittedAt != nil {
		t := *p.SubmittedAt
		r.SubmittedAt = &t
	}
	if p.SubmitBy != nil {
		r.SubmitBy = *p.SubmitBy
	}
	if p.Error != nil {
		e := *p.Error
		r.Error = &e
	}
}

// MemoryStore is an in-process Store used in tests and small deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (m *MemoryStore) Save(_ context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return errors.New("record with empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context, filter Filter) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for _, r := range m.records {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmitBy.Before(out[j].SubmitBy)
	})
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(r)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}
