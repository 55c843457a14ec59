// Package events delivers session events to in-process subscribers and,
// optionally, to other instances over Redis pub/sub.
package events

import (
	"context"
	"sync"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"

	"go.uber.org/zap"
)

// MemoryBus fans events out to local subscribers and keeps a short history.
// A subscriber whose buffer is full misses events instead of blocking the
// publisher.
type MemoryBus struct {
	mu      sync.RWMutex
	subs    map[int]chan *domain.SessionEvent
	nextID  int
	history []*domain.SessionEvent
	limit   int

	forward []ports.EventPublisher
	logger  *zap.SugaredLogger
}

func NewMemoryBus(historyLimit int, logger *zap.SugaredLogger) *MemoryBus {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &MemoryBus{
		subs:   make(map[int]chan *domain.SessionEvent),
		limit:  historyLimit,
		logger: logger,
	}
}

// Forward additionally sends every published event to p.
func (b *MemoryBus) Forward(p ports.EventPublisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forward = append(b.forward, p)
}

func (b *MemoryBus) Publish(ctx context.Context, event *domain.SessionEvent) error {
	b.mu.Lock()
	if b.limit > 0 {
		b.history = append(b.history, event)
		if over := len(b.history) - b.limit; over > 0 {
			b.history = b.history[over:]
		}
	}
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Debugw("dropping event for slow subscriber", "subscriber", id, "type", event.Type)
		}
	}
	forward := b.forward
	b.mu.Unlock()

	for _, p := range forward {
		if err := p.Publish(ctx, event); err != nil {
			b.logger.Warnw("failed to forward event", "type", event.Type, "error", err)
		}
	}
	return nil
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel.
func (b *MemoryBus) Subscribe(buffer int) (<-chan *domain.SessionEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan *domain.SessionEvent, buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Recent returns up to n of the latest events, oldest first.
func (b *MemoryBus) Recent(n int) []*domain.SessionEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	out := make([]*domain.SessionEvent, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}
