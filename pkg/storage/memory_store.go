package storage

import "sync"

// MemoryStore implements the CrawlStore interface with plain maps.
// Used when no state directory is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	paths map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:  make(map[string]struct{}),
		paths: make(map[string]string),
	}
}

// MarkSeen implements the CrawlStore interface
func (s *MemoryStore) MarkSeen(canonicalURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[canonicalURL]; ok {
		return false, nil
	}
	s.seen[canonicalURL] = struct{}{}
	return true, nil
}

// Seen implements the CrawlStore interface
func (s *MemoryStore) Seen(canonicalURL string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[canonicalURL]
	return ok, nil
}

// SetLocalPath implements the CrawlStore interface
func (s *MemoryStore) SetLocalPath(canonicalURL, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[canonicalURL] = relPath
	return nil
}

// LocalPath implements the CrawlStore interface
func (s *MemoryStore) LocalPath(canonicalURL string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.paths[canonicalURL]
	return rel, ok
}

// SeenCount implements the CrawlStore interface
func (s *MemoryStore) SeenCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen), nil
}

// Close implements the CrawlStore interface
func (s *MemoryStore) Close() error { return nil }
