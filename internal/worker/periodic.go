package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Periodic runs SyncAll on a fixed interval as a backstop for lost messages.
type Periodic struct {
	worker   *SyncWorker
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewPeriodic(worker *SyncWorker, interval time.Duration) *Periodic {
	return &Periodic{worker: worker, interval: interval}
}

// Start begins the loop. It returns an error if already running.
func (p *Periodic) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("periodic sync is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	p.worker.logger.InfoContext(ctx, "Periodic sync started", "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (p *Periodic) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		p.worker.logger.WarnContext(ctx, "Periodic sync stop timed out")
		return ctx.Err()
	}
}

func (p *Periodic) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Periodic) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.worker.SyncAll(ctx); err != nil {
				p.worker.logger.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}
