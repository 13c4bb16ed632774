package kv

import (
	"fmt"
	"log/slog"
	"sync"
)

const notifyQueueSize = 256

type listenerEntry struct {
	id uint64
	fn Listener
}

// notifier delivers change batches to listeners on a single goroutine so
// every listener observes commits in order.
type notifier struct {
	mu        sync.Mutex
	listeners []listenerEntry
	next      uint64

	closeMu sync.RWMutex
	closed  bool
	queue   chan []Change
	done    chan struct{}

	logger *slog.Logger
}

func newNotifier(l *slog.Logger) *notifier {
	n := &notifier{
		queue:  make(chan []Change, notifyQueueSize),
		done:   make(chan struct{}),
		logger: l,
	}
	go n.run()
	return n
}

func (n *notifier) subscribe(fn Listener) func() {
	n.mu.Lock()
	n.next++
	id := n.next
	n.listeners = append(n.listeners, listenerEntry{id: id, fn: fn})
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, e := range n.listeners {
			if e.id == id {
				n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit queues a batch. It blocks while the queue is full and drops the batch
// once the notifier is closed.
func (n *notifier) emit(changes []Change) {
	if len(changes) == 0 {
		return
	}
	n.closeMu.RLock()
	defer n.closeMu.RUnlock()
	if n.closed {
		return
	}
	n.queue <- changes
}

func (n *notifier) run() {
	defer close(n.done)
	for batch := range n.queue {
		n.mu.Lock()
		listeners := append([]listenerEntry(nil), n.listeners...)
		n.mu.Unlock()

		for _, l := range listeners {
			n.call(l, batch)
		}
	}
}

func (n *notifier) call(l listenerEntry, batch []Change) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("kv change listener panicked", "listener", l.id, "panic", fmt.Sprint(r))
		}
	}()
	l.fn(batch)
}

// close stops accepting batches and waits for queued ones to be delivered.
func (n *notifier) close() {
	n.closeMu.Lock()
	if n.closed {
		n.closeMu.Unlock()
		<-n.done
		return
	}
	n.closed = true
	close(n.queue)
	n.closeMu.Unlock()
	<-n.done
}
