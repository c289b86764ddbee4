package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure SyncLedger implements the interface.
var _ driven.SyncLedger = (*SyncLedger)(nil)

// SyncLedger is an in-memory implementation of driven.SyncLedger.
type SyncLedger struct {
	mu     sync.RWMutex
	states map[string]domain.DocState
}

// NewSyncLedger creates a new in-memory sync ledger.
func NewSyncLedger() *SyncLedger {
	return &SyncLedger{
		states: make(map[string]domain.DocState),
	}
}

// Get retrieves the ledger entry for a document.
func (l *SyncLedger) Get(_ context.Context, docID string) (*domain.DocState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	state, ok := l.states[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &state, nil
}

// Put creates or replaces the ledger entry for a document.
func (l *SyncLedger) Put(_ context.Context, state domain.DocState) error {
	if state.DocID == "" {
		return fmt.Errorf("%w: doc id is required", domain.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[state.DocID] = state
	return nil
}

// List returns all entries ordered by doc id.
func (l *SyncLedger) List(_ context.Context) ([]domain.DocState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	states := make([]domain.DocState, 0, len(l.states))
	for _, s := range l.states {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].DocID < states[j].DocID })
	return states, nil
}
