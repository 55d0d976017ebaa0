package infrastructure

import (
	"sync"

	"github.com/yourusername/hfcache-go/internal/domain"
	"github.com/yourusername/hfcache-go/internal/metrics"
)

// Broadcaster fans download snapshots out to subscribers such as websocket
// clients.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan *domain.Download]struct{}
}

// NewBroadcaster creates a new broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan *domain.Download]struct{}),
	}
}

// Subscribe adds a subscriber. The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan *domain.Download {
	ch := make(chan *domain.Download, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetProgressSubscribers(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Broadcaster) Unsubscribe(ch chan *domain.Download) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetProgressSubscribers(n)
}

// Publish sends a copy of download to every subscriber. Slow subscribers
// miss updates rather than block the sender.
func (b *Broadcaster) Publish(download *domain.Download) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- download.Clone():
		default:
		}
	}
}

// Count returns the current number of subscribers
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
