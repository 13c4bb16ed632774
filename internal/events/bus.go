package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Kai-project-00/clipgo/internal/logger"
)

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id    uint64
	kinds map[Kind]bool // nil means every kind
	fn    Handler
}

// Bus delivers events synchronously to subscribers in subscription order.
// A panicking handler is logged and skipped; it never reaches the publisher
// or other handlers.
type Bus struct {
	mu     sync.RWMutex
	next   uint64
	subs   []subscription
	logger *slog.Logger
}

// NewBus creates an empty bus. A nil logger discards panic reports.
func NewBus(l *slog.Logger) *Bus {
	return &Bus{logger: logger.OrDiscard(l)}
}

// Subscribe registers fn for the given kinds, or for every kind when none are
// given. The returned function removes the subscription.
func (b *Bus) Subscribe(fn Handler, kinds ...Kind) (unsubscribe func()) {
	var set map[Kind]bool
	if len(kinds) > 0 {
		set = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			set[k] = true
		}
	}

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, kinds: set, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// On subscribes fn to a single event type.
func On[E Event](b *Bus, fn func(E)) (unsubscribe func()) {
	var zero E
	return b.Subscribe(func(e Event) {
		if typed, ok := e.(E); ok {
			fn(typed)
		}
	}, zero.Kind())
}

// Publish delivers e to every matching subscriber before returning.
// Handlers may subscribe or unsubscribe while being called.
func (b *Bus) Publish(e Event) {
	if b == nil || e == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kinds == nil || s.kinds[e.Kind()] {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"kind", string(e.Kind()),
				"subscription", s.id,
				"panic", fmt.Sprint(r))
		}
	}()
	s.fn(e)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
