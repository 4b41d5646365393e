package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"budgetbook/internal/kv"
)

// Store keeps values in a map. It is the default backend for tests and for
// throwaway sessions.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	revs   map[string]int64
	writes int
}

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Reviser = (*Store)(nil)
)

func New() *Store {
	return &Store{values: map[string]string{}, revs: map[string]int64{}}
}

// NewFromFiles seeds the store from <base>/expenses.json and
// <base>/budgets.json when those files exist.
func NewFromFiles(base string) *Store {
	s := New()
	for _, key := range kv.Keys() {
		if v, ok := readFile(filepath.Join(base, key+".json")); ok {
			s.values[key] = v
		}
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.revs[key]++
	s.writes++
	return nil
}

// Revision returns how many times key has been written, 0 if never.
func (s *Store) Revision(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revs[key], nil
}

// Writes returns how many Set calls succeeded.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func readFile(path string) (string, bool) {
	b, err := os.ReadFile(path)
	if err != nil || len(b) == 0 {
		return "", false
	}
	return string(b), true
}
