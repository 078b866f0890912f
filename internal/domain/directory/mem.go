package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemRepo is an in-memory Repository used by tests and development seeding.
type MemRepo struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
	doctors  map[uuid.UUID]*Doctor
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		patients: make(map[uuid.UUID]*Patient),
		doctors:  make(map[uuid.UUID]*Doctor),
	}
}

// AddPatient registers a patient; a zero ID is replaced with a fresh one.
func (m *MemRepo) AddPatient(p *Patient) *Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.IsActive = true
	m.patients[p.ID] = p
	return p
}

// AddDoctor registers a doctor; a zero ID is replaced with a fresh one.
func (m *MemRepo) AddDoctor(d *Doctor) *Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.IsActive = true
	m.doctors[d.ID] = d
	return d
}

func (m *MemRepo) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok || !p.IsActive {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *MemRepo) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok || !d.IsActive {
		return nil, ErrNotFound
	}
	return d, nil
}
