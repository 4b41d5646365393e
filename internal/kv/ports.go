// Package kv defines the key-value persistence port the ledger snapshots
// its collections through.
package kv

import (
	"context"
	"errors"
)

// Keys holding the two ledger collections.
const (
	KeyExpenses = "expenses"
	KeyBudgets  = "budgets"
)

// Ports for outbound adapters.
type (
	Reader interface {
		// Get returns the value stored under key. found is false when the key
		// has never been written.
		Get(ctx context.Context, key string) (value string, found bool, err error)
	}

	Writer interface {
		// Set overwrites the value stored under key.
		Set(ctx context.Context, key, value string) error
	}

	Store interface {
		Reader
		Writer
	}

	// Reviser is implemented by stores that count the writes of every key
	// themselves, so the count keeps growing across processes.
	Reviser interface {
		Revision(ctx context.Context, key string) (int64, error)
	}
)

// ErrNoRevision is returned by a Reviser that wraps a store without one.
var ErrNoRevision = errors.New("store does not track revisions")

// Keys returns every key the ledger persists.
func Keys() []string {
	return []string{KeyExpenses, KeyBudgets}
}
