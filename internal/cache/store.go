package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetbook/internal/kv"
)

// Store is a read-through, write-through cache in front of a kv.Store.
// Concurrent misses for the same key share one backend read.
type Store struct {
	next  kv.Store
	cache *snapshots
	group singleflight.Group
}

var (
	_ kv.Store = (*Store)(nil)
	_ Cleaner  = (*Store)(nil)
)

func NewStore(next kv.Store, size int, ttl time.Duration) *Store {
	return &Store{next: next, cache: newSnapshots(size, ttl)}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if e, ok := s.cache.get(key); ok {
		return e.value, e.found, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		value, found, err := s.next.Get(ctx, key)
		if err != nil {
			return entry{}, err
		}
		e := entry{value: value, found: found}
		s.cache.put(key, e)
		return e, nil
	})
	if err != nil {
		return "", false, err
	}
	e := v.(entry)
	return e.value, e.found, nil
}

// Set writes through. A failed write drops the cached entry so the next read
// goes to the backend.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.next.Set(ctx, key, value); err != nil {
		s.cache.drop(key)
		return err
	}
	s.cache.put(key, entry{value: value, found: true})
	return nil
}

// Revision asks the wrapped store, which owns the write counter.
func (s *Store) Revision(ctx context.Context, key string) (int64, error) {
	r, ok := s.next.(kv.Reviser)
	if !ok {
		return 0, kv.ErrNoRevision
	}
	return r.Revision(ctx, key)
}

// Invalidate forgets key so the next Get reads the backend.
func (s *Store) Invalidate(key string) {
	s.cache.drop(key)
}

func (s *Store) CleanExpired() int {
	return s.cache.CleanExpired()
}

// Unwrap returns the wrapped store.
func (s *Store) Unwrap() kv.Store {
	return s.next
}
