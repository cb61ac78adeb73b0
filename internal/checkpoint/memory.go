package checkpoint

import (
	"context"
	"sync"
)

// MemorySaver keeps snapshots in process memory. Snapshots are stored
// encoded, so callers never share message values with the store.
type MemorySaver struct {
	mu      sync.RWMutex
	threads map[string][][]byte // oldest first
}

// NewMemorySaver creates an empty in-memory backend.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{threads: make(map[string][][]byte)}
}

func (m *MemorySaver) Put(ctx context.Context, threadID string, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentID := ""
	if records := m.threads[threadID]; len(records) > 0 {
		last, err := decode(records[len(records)-1])
		if err != nil {
			return err
		}
		parentID = last.ID
	}

	prepare(threadID, parentID, snap)
	data, err := encode(snap)
	if err != nil {
		return err
	}
	m.threads[threadID] = append(m.threads[threadID], data)
	return nil
}

func (m *MemorySaver) List(ctx context.Context, threadID string) ([]Tuple, error) {
	snaps, err := m.StateHistory(ctx, threadID)
	if err != nil {
		return nil, err
	}
	tuples := make([]Tuple, len(snaps))
	for i, s := range snaps {
		tuples[i] = tupleOf(s)
	}
	return tuples, nil
}

func (m *MemorySaver) Latest(ctx context.Context, threadID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.threads[threadID]
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	snap, err := decode(records[len(records)-1])
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// StateHistory returns the thread's snapshots, newest first.
func (m *MemorySaver) StateHistory(ctx context.Context, threadID string) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.threads[threadID]
	snaps := make([]Snapshot, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		snap, err := decode(records[i])
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (m *MemorySaver) Close() error {
	return nil
}
