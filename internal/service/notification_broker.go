package service

import (
	"sync"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/observability"
)

const inboxStreamBuffer = 16

// inboxBroker routes notifications to the streams open on this replica.
// Slow streams lose events rather than block delivery.
type inboxBroker struct {
	mu      sync.RWMutex
	streams map[string]map[chan dto.NotificationResponse]struct{}
}

func newInboxBroker() *inboxBroker {
	return &inboxBroker{streams: make(map[string]map[chan dto.NotificationResponse]struct{})}
}

func (b *inboxBroker) subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	stream := make(chan dto.NotificationResponse, inboxStreamBuffer)

	b.mu.Lock()
	if b.streams[userID] == nil {
		b.streams[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.streams[userID][stream] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return stream, func() {
		once.Do(func() { b.unsubscribe(userID, stream) })
	}
}

func (b *inboxBroker) unsubscribe(userID string, stream chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	streams, ok := b.streams[userID]
	if !ok {
		return
	}
	if _, ok := streams[stream]; !ok {
		return
	}
	delete(streams, stream)
	close(stream)
	if len(streams) == 0 {
		delete(b.streams, userID)
	}
}

func (b *inboxBroker) broadcast(notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for stream := range b.streams[notification.UserID] {
		select {
		case stream <- notification:
		default:
			observability.NotificationStreamDrops().Inc()
		}
	}
}

func (b *inboxBroker) listeners(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams[userID])
}
