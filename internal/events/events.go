// Package events is an in-process, fire-and-forget notification bus.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind names an event.
type Kind string

const (
	KindProviderSuccess  Kind = "providerSuccess"
	KindProviderFailure  Kind = "providerFailure"
	KindAnalysisComplete Kind = "analysisComplete"
	KindAnalysisFailed   Kind = "analysisFailed"
)

// Event is a single notification. Provider fields are set for provider
// events; Payload carries the normalized quote or the recommendation.
type Event struct {
	Kind         Kind      `json:"kind"`
	Provider     string    `json:"provider,omitempty"`
	EndpointKind string    `json:"endpoint_kind,omitempty"`
	Attempt      int       `json:"attempt,omitempty"`
	Payload      any       `json:"payload,omitempty"`
	Err          error     `json:"-"`
	At           time.Time `json:"at"`
}

// Publisher is the narrow port producers depend on.
type Publisher interface {
	Publish(Event)
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan Event
	dropped atomic.Uint64
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to every subscriber with room in its buffer.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped on full buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Nop discards everything.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}
