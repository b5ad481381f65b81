package realtime

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus: publishes are queued on a buffered channel
// and delivered to subscribers by one background goroutine, in publish order.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]func(Event)
	nextID      uint64
	events      chan Event
	done        chan struct{}
	closeOnce   sync.Once
}

func NewMemoryBus(bufferSize int) *MemoryBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	b := &MemoryBus{
		subscribers: make(map[uint64]func(Event)),
		events:      make(chan Event, bufferSize),
		done:        make(chan struct{}),
	}

	go b.processEvents()

	return b
}

// Publish never blocks; a full buffer drops the event and reports ErrBufferFull.
func (b *MemoryBus) Publish(_ context.Context, e Event) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	select {
	case b.events <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

func (b *MemoryBus) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

func (b *MemoryBus) processEvents() {
	for {
		select {
		case <-b.done:
			return
		case e := <-b.events:
			b.deliver(e)
		}
	}
}

func (b *MemoryBus) deliver(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
