package cache

import (
	"context"
	"sync"
	"time"
)

// DraftStore persists open-ended answer buffers per attempt so an
// interrupted session resumes with typed text intact.
type DraftStore interface {
	SaveDraft(ctx context.Context, assessmentID uint, questionIndex int, text string) error
	LoadDrafts(ctx context.Context, assessmentID uint) (map[int]string, error)
	Clear(ctx context.Context, assessmentID uint) error
}

type memoryStore struct {
	mu     sync.Mutex
	drafts map[uint]map[int]string
}

// NewMemoryStore is the default in-process draft store.
func NewMemoryStore() DraftStore {
	return &memoryStore{drafts: make(map[uint]map[int]string)}
}

func (m *memoryStore) SaveDraft(_ context.Context, assessmentID uint, questionIndex int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drafts[assessmentID] == nil {
		m.drafts[assessmentID] = make(map[int]string)
	}
	m.drafts[assessmentID][questionIndex] = text
	return nil
}

func (m *memoryStore) LoadDrafts(_ context.Context, assessmentID uint) (map[int]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]string, len(m.drafts[assessmentID]))
	for k, v := range m.drafts[assessmentID] {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) Clear(_ context.Context, assessmentID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, assessmentID)
	return nil
}

// DefaultDraftTTL bounds how long an abandoned attempt keeps its drafts.
const DefaultDraftTTL = 24 * time.Hour
