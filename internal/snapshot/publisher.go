package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher hands the newest Snapshot to any number of readers.
type Publisher struct {
	// mu serializes writers; readers only touch latest.
	mu      sync.Mutex
	latest  atomic.Pointer[Snapshot]
	seq     uint64
	updates chan struct{}

	doneOnce sync.Once
	done     chan struct{}
}

// NewPublisher creates a publisher with no snapshot yet.
func NewPublisher() *Publisher {
	return &Publisher{
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Publish makes s the latest snapshot. It never blocks; a reader that has
// not yet consumed the previous notification simply sees s instead.
// s must not be modified afterwards. Once a final snapshot is published,
// non-final ones are dropped.
func (p *Publisher) Publish(s *Snapshot) {
	p.mu.Lock()
	if cur := p.latest.Load(); cur != nil && cur.Final && !s.Final {
		p.mu.Unlock()
		return
	}
	p.seq++
	s.Seq = p.seq
	p.latest.Store(s)
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// PublishFinal publishes s marked as final and closes Done.
func (p *Publisher) PublishFinal(s *Snapshot) {
	s.Final = true
	p.Publish(s)
	p.doneOnce.Do(func() { close(p.done) })
}

// Latest returns the newest snapshot, or nil before the first Publish.
func (p *Publisher) Latest() *Snapshot {
	return p.latest.Load()
}

// Updates receives a value after every Publish that found the slot empty.
func (p *Publisher) Updates() <-chan struct{} {
	return p.updates
}

// Done is closed once the final snapshot is published.
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}

// Run publishes build() every interval until ctx is canceled or the final
// snapshot is published. build may return nil to skip a tick.
func (p *Publisher) Run(ctx context.Context, interval time.Duration, build func() *Snapshot) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s := build(); s != nil {
				p.Publish(s)
			}
		case <-p.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
