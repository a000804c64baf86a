package mapstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StubStore is an in-memory Store that records operations for
// assertions. Inject errors through the Fail* fields.
type StubStore struct {
	mu   sync.Mutex
	maps map[string]stubEntry

	// FailSave, FailLoad, FailList, FailDelete make the corresponding
	// operation return the given error.
	FailSave   error
	FailLoad   error
	FailList   error
	FailDelete error

	// Saves and Loads record the names passed to Save and Load, in
	// order.
	Saves []string
	Loads []string

	// Closed reports whether Close has been called.
	Closed bool
}

type stubEntry struct {
	data    []byte
	savedAt time.Time
}

// NewStubStore creates an empty in-memory store.
func NewStubStore() *StubStore {
	return &StubStore{maps: make(map[string]stubEntry)}
}

// Save implements Store.
func (s *StubStore) Save(_ context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return wrap("save", name, s.FailSave)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.maps[name] = stubEntry{data: buf, savedAt: time.Now()}
	s.Saves = append(s.Saves, name)
	return nil
}

// Load implements Store.
func (s *StubStore) Load(_ context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailLoad != nil {
		return nil, wrap("load", name, s.FailLoad)
	}
	entry, ok := s.maps[name]
	if !ok {
		return nil, notFound("load", name)
	}
	s.Loads = append(s.Loads, name)
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

// List implements Store.
func (s *StubStore) List(_ context.Context) ([]Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailList != nil {
		return nil, wrap("list", "", s.FailList)
	}
	infos := make([]Info, 0, len(s.maps))
	for name, entry := range s.maps {
		infos = append(infos, Info{Name: name, Size: int64(len(entry.data)), SavedAt: entry.savedAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete implements Store.
func (s *StubStore) Delete(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return wrap("delete", name, s.FailDelete)
	}
	if _, ok := s.maps[name]; !ok {
		return notFound("delete", name)
	}
	delete(s.maps, name)
	return nil
}

// Close implements Store.
func (s *StubStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Verify StubStore implements Store.
var _ Store = (*StubStore)(nil)
