package backoff

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between consecutive calls across goroutines.
type Pacer struct {
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
	now  func() time.Time
}

func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{Interval: interval, now: time.Now}
}

// Wait blocks until this caller's slot arrives or ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.Interval <= 0 {
		return ctx.Err()
	}
	p.mu.Lock()
	now := p.now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.Interval)
	p.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
