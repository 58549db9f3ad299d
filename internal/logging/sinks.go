package logging

import (
	"sync"

	"mulay/internal/buffer"
)

const defaultSubscriberBuffer = 100

// LogBuffer keeps the most recent entries for inspection over the API.
type LogBuffer struct {
	mu      sync.Mutex
	entries *buffer.Ring[LogEntry]
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{
		entries: buffer.NewRing[LogEntry](size),
	}
}

func (b *LogBuffer) Add(entry LogEntry) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries.Add(entry)
}

func (b *LogBuffer) List() []LogEntry {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries.List()
}

// LogHub fans entries out to subscribers. Slow subscribers miss entries
// rather than stall the caller.
type LogHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan LogEntry
	closed bool
}

func NewLogHub() *LogHub {
	return &LogHub{
		subs: make(map[uint64]chan LogEntry),
	}
}

func (h *LogHub) Subscribe(size int) (<-chan LogEntry, func()) {
	if h == nil {
		return nil, func() {}
	}
	if size <= 0 {
		size = defaultSubscriberBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		ch := make(chan LogEntry)
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	ch := make(chan LogEntry, size)
	h.subs[id] = ch
	return ch, func() { h.unsubscribe(id) }
}

func (h *LogHub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(existing)
	}
}

// Broadcast delivers under the hub lock so a concurrent unsubscribe can
// never close a channel mid-send.
func (h *LogHub) Broadcast(entry LogEntry) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (h *LogHub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
