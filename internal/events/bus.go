// Package events fans operation events out to feed subscribers.
package events

import (
	"encoding/json"
	"sync"

	"github.com/natea/minecraft-mcp-gdpc/internal/protocol"
)

// Bus broadcasts marshaled operation messages. Subscribers get a
// bounded channel; one that stops draining is dropped, never blocked on.
type Bus struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

const subBuffer = 64

func NewBus() *Bus {
	return &Bus{subs: map[chan []byte]struct{}{}}
}

// Subscribe registers a new feed consumer. The returned cancel closes
// and removes the channel.
func (b *Bus) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish sends ev to every live subscriber. A subscriber with a full
// buffer misses the event; the feed is best-effort.
func (b *Bus) Publish(ev protocol.OperationEvent) {
	msg, err := json.Marshal(protocol.NewOperationMsg(ev))
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribers reports the current subscriber count (metrics).
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
