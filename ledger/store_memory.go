package ledger

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryStore is an ephemeral ledger, mainly for testing purposes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]AccountEntry
	work    map[string]Work
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]AccountEntry),
		work:    make(map[string]Work),
	}
}

func (s *MemoryStore) LastEntry(ctx context.Context, publicKey []byte) (AccountEntry, bool, error) {
	ee, _ := s.ListEntries(ctx, publicKey)
	if len(ee) == 0 {
		return AccountEntry{}, false, nil
	}
	return ee[0], true, nil
}

func (s *MemoryStore) ListEntries(ctx context.Context, publicKey []byte) ([]AccountEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ee := []AccountEntry{}
	for _, e := range s.entries {
		if bytes.Equal(e.PublicKey, publicKey) {
			ee = append(ee, cloneEntry(e))
		}
	}

	sort.Slice(ee, func(i, j int) bool {
		return ee[i].Height > ee[j].Height
	})

	return ee, nil
}

func (s *MemoryStore) SaveEntry(ctx context.Context, e *AccountEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[string(e.Hash)] = cloneEntry(*e)
	return nil
}

func (s *MemoryStore) Work(ctx context.Context) (Work, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		lowest Work
		found  bool
	)
	for _, w := range s.work {
		if !found || bytes.Compare(w.Value, lowest.Value) < 0 {
			lowest, found = w, true
		}
	}

	if !found {
		return Work{}, false, nil
	}
	return cloneWork(lowest), true, nil
}

func (s *MemoryStore) SetWork(ctx context.Context, w *Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.work[string(w.PublicKey)] = cloneWork(*w)
	return nil
}

func (s *MemoryStore) ClearWork(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.work)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.entries)
	clear(s.work)
	return nil
}

func cloneEntry(e AccountEntry) AccountEntry {
	e.Hash = bytes.Clone(e.Hash)
	e.PublicKey = bytes.Clone(e.PublicKey)
	return e
}

func cloneWork(w Work) Work {
	w.PublicKey = bytes.Clone(w.PublicKey)
	w.Value = bytes.Clone(w.Value)
	return w
}
