package worker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"budgetbook/internal/amqp"
	"budgetbook/internal/kv"
	applog "budgetbook/internal/log"
)

// SyncWorker copies ledger snapshots from the primary store to a mirror.
// Snapshots identical to the last mirrored value are not written again.
type SyncWorker struct {
	primary kv.Reader
	mirror  kv.Writer
	logger  *applog.Logger

	mu         sync.Mutex
	lastSynced map[string]string
}

// invalidator is implemented by read caches in front of the primary store.
type invalidator interface {
	Invalidate(key string)
}

func NewSyncWorker(primary kv.Reader, mirror kv.Writer, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.Default(applog.ComponentWorker)
	}
	return &SyncWorker{
		primary:    primary,
		mirror:     mirror,
		logger:     logger,
		lastSynced: map[string]string{},
	}
}

// HandleSyncMessage mirrors the snapshot named by msg. The primary is read
// at handling time, so a message that arrives late or out of order still
// mirrors the current snapshot; its revision is only logged.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SnapshotSavedMessage) error {
	if !isLedgerKey(msg.Key) {
		w.logger.WarnContext(ctx, "Ignoring message for unknown key", applog.FieldKey, msg.Key)
		return nil
	}

	if c, ok := w.primary.(invalidator); ok {
		c.Invalidate(msg.Key)
	}
	written, err := w.SyncKey(ctx, msg.Key)
	if err != nil {
		return err
	}
	if !written {
		w.logger.DebugContext(ctx, "Snapshot already mirrored",
			applog.NewFields().WithSnapshot(msg.Key, msg.Revision).ToSlice()...)
	}
	return nil
}

// SyncKey copies one snapshot and reports whether the mirror was written.
// A key absent from the primary is left alone on the mirror.
func (w *SyncWorker) SyncKey(ctx context.Context, key string) (bool, error) {
	return w.syncKey(ctx, key, false)
}

// syncKey skips values already mirrored by this worker. With verify set and
// a mirror that can be read, the mirror's own value is compared instead, so
// a snapshot lost on the mirror side is written again.
func (w *SyncWorker) syncKey(ctx context.Context, key string, verify bool) (bool, error) {
	value, found, err := w.primary.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s from primary: %w", key, err)
	}
	if !found {
		w.logger.DebugContext(ctx, "Nothing to mirror", applog.FieldKey, key)
		return false, nil
	}

	unchanged, err := w.mirrored(ctx, key, value, verify)
	if err != nil {
		return false, err
	}
	if unchanged {
		return false, nil
	}

	if err := w.mirror.Set(ctx, key, value); err != nil {
		w.forget(key)
		return false, fmt.Errorf("write %s to mirror: %w", key, err)
	}

	w.mu.Lock()
	w.lastSynced[key] = value
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Snapshot mirrored", applog.FieldKey, key, "bytes", len(value))
	return true, nil
}

func (w *SyncWorker) mirrored(ctx context.Context, key, value string, verify bool) (bool, error) {
	if r, ok := w.mirror.(kv.Reader); ok && verify {
		current, found, err := r.Get(ctx, key)
		if err != nil {
			return false, fmt.Errorf("read %s from mirror: %w", key, err)
		}
		if !found || current != value {
			if w.forget(key) {
				w.logger.WarnContext(ctx, "Mirror lost a synced snapshot, rewriting", applog.FieldKey, key)
			}
			return false, nil
		}
		w.mu.Lock()
		w.lastSynced[key] = value
		w.mu.Unlock()
		return true, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.lastSynced[key]
	return ok && last == value, nil
}

// forget drops the remembered value of key and reports whether there was one.
func (w *SyncWorker) forget(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.lastSynced[key]
	delete(w.lastSynced, key)
	return ok
}

// SyncAll mirrors every ledger key concurrently, checking the mirror's
// contents when it can be read. It is run at startup to recover from missed
// messages and periodically afterwards.
func (w *SyncWorker) SyncAll(ctx context.Context) error {
	keys := kv.Keys()
	written := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			ok, err := w.syncKey(gctx, key, true)
			written[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("sync all: %w", err)
	}

	count := 0
	for _, ok := range written {
		if ok {
			count++
		}
	}
	w.logger.InfoContext(ctx, "Full sync completed", applog.FieldCount, count)
	return nil
}

func isLedgerKey(key string) bool {
	for _, k := range kv.Keys() {
		if k == key {
			return true
		}
	}
	return false
}
