package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/model"
)

// Memory is an in-process Store used in tests and single-node development.
type Memory struct {
	mu      sync.Mutex
	byID    map[string]entry
	byEmail map[string]string

	// Now is overridable for expiry tests; defaults to time.Now.
	Now func() time.Time
}

type entry struct {
	s        model.VerificationSession
	deadline time.Time
}

// NewMemory constructs an in-memory session store.
func NewMemory() *Memory {
	return &Memory{
		byID:    map[string]entry{},
		byEmail: map[string]string{},
		Now:     time.Now,
	}
}

// Save stores a copy of the session with a TTL deadline.
func (m *Memory) Save(_ context.Context, s *model.VerificationSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = entry{s: *s, deadline: m.Now().Add(ttl)}
	m.byEmail[strings.ToLower(s.Email)] = s.ID
	return nil
}

// Get loads a live session by ID.
func (m *Memory) Get(_ context.Context, id string) (*model.VerificationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok || m.Now().After(e.deadline) {
		delete(m.byID, id)
		return nil, errs.ErrSessionExpired
	}
	cpy := e.s
	return &cpy, nil
}

// GetByEmail loads the live session bound to an email.
func (m *Memory) GetByEmail(ctx context.Context, email string) (*model.VerificationSession, error) {
	m.mu.Lock()
	id, ok := m.byEmail[strings.ToLower(email)]
	m.mu.Unlock()
	if !ok {
		return nil, errs.ErrSessionExpired
	}
	return m.Get(ctx, id)
}

// Delete consumes the session.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.byID[id]; ok {
		delete(m.byEmail, strings.ToLower(e.s.Email))
		delete(m.byID, id)
	}
	return nil
}
