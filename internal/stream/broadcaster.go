package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
)

// Filter decides whether a subscriber receives a published announcement.
// Heartbeats must always pass; ForPrincipal takes care of that.
type Filter func(domain.Announcement) bool

// ForPrincipal returns the filter used by per-user live streams: heartbeats
// always pass, content items pass when they belong to the principal's tenant
// and are addressed to them. Scheduler-produced items carry only a bundle
// key, whose leading segment is the receiver id.
func ForPrincipal(tenant, userID string) Filter {
	return func(a domain.Announcement) bool {
		if a.Type == domain.TypeHealthcheck {
			return true
		}
		if a.TenantID != tenant {
			return false
		}
		if a.ReceiverID != "" {
			return a.ReceiverID == userID
		}
		return strings.HasPrefix(a.BundleKey, userID+"-")
	}
}

// Subscription is one independent subscriber stream. Items arrive on C;
// Close releases the stream. The channel is closed by the broadcaster when
// the subscription ends.
type Subscription struct {
	C      <-chan domain.Announcement
	ch     chan domain.Announcement
	filter Filter
	once   sync.Once
	b      *Broadcaster
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.b.unsubscribe(s) })
}

// Broadcaster is the in-process multicast bus for live notification
// announcements. Each subscriber owns a bounded buffer; when a slow
// subscriber's buffer is full the oldest buffered item is dropped so the
// producer never blocks and siblings are never starved.
type Broadcaster struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	closed   bool
	buffer   int
	interval time.Duration
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer
// capacity and heartbeat period.
func NewBroadcaster(buffer int, heartbeat time.Duration) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		subs:     make(map[*Subscription]struct{}),
		buffer:   buffer,
		interval: heartbeat,
	}
}

// Run publishes a heartbeat on a fixed period until ctx is cancelled, then
// closes every remaining subscription.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.close()
			return
		case now := <-ticker.C:
			b.Publish(domain.Heartbeat(now))
		}
	}
}

// Subscribe registers a new filtered subscriber stream.
func (b *Broadcaster) Subscribe(filter Filter) *Subscription {
	ch := make(chan domain.Announcement, b.buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter, b: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers the announcement to every subscriber whose filter
// matches. Never blocks: a full subscriber buffer drops its oldest item.
func (b *Broadcaster) Publish(a domain.Announcement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !sub.filter(a) {
			continue
		}
		for {
			select {
			case sub.ch <- a:
			default:
				// Buffer full: drop the oldest item and retry.
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *Broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
