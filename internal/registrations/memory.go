package registrations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/centre-social/backend/internal/models"
)

// MemoryStore is an in-process Store with the same uniqueness and conditional-update
// guarantees as the PostgreSQL repository. Used in tests and local demos.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Registration
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[uuid.UUID]*models.Registration), now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.EventID == reg.EventID && r.Email == reg.Email && r.Status != models.StatusCancelled {
			return ErrDuplicateActiveRegistration
		}
	}
	reg.ID = uuid.New()
	reg.CreatedAt = m.now()
	reg.UpdatedAt = reg.CreatedAt
	m.rows[reg.ID] = clone(reg)
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	return clone(r), nil
}

func (m *MemoryStore) GetByToken(_ context.Context, token string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.EmailToken != nil && *r.EmailToken == token {
			return clone(r), nil
		}
	}
	return nil, ErrTokenNotFound
}

func (m *MemoryStore) GetActive(_ context.Context, eventID uuid.UUID, email string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.EventID == eventID && r.Email == email && r.Status != models.StatusCancelled {
			return clone(r), nil
		}
	}
	return nil, ErrRegistrationNotFound
}

func (m *MemoryStore) Update(_ context.Context, id uuid.UUID, u Update) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || !u.allows(r.Status) {
		return nil, errNoMatch
	}
	if u.Token != "" && (r.EmailToken == nil || *r.EmailToken != u.Token) {
		return nil, errNoMatch
	}
	if r.Status == models.StatusCancelled && u.To != models.StatusCancelled {
		for _, other := range m.rows {
			if other.ID != id && other.EventID == r.EventID && other.Email == r.Email && other.Status != models.StatusCancelled {
				return nil, ErrDuplicateActiveRegistration
			}
		}
	}
	u.apply(r)
	return clone(r), nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.Registration{}
	for _, r := range m.rows {
		if f.EventID != nil && r.EventID != *f.EventID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		list = append(list, *clone(r))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (m *MemoryStore) CountByStatus(_ context.Context, eventID *uuid.UUID) (map[models.RegistrationStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.RegistrationStatus]int, len(models.RegistrationStatuses))
	for _, s := range models.RegistrationStatuses {
		counts[s] = 0
	}
	for _, r := range m.rows {
		if eventID == nil || r.EventID == *eventID {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrRegistrationNotFound
	}
	delete(m.rows, id)
	return nil
}

func clone(r *models.Registration) *models.Registration {
	c := *r
	if r.EmailToken != nil {
		t := *r.EmailToken
		c.EmailToken = &t
	}
	return &c
}
