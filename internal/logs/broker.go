package logs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 100

// Subscriber receives newly created entries of one stream.
type Subscriber struct {
	ID        string
	Stream    models.Stream
	Ch        chan *models.LogEntry
	CreatedAt time.Time
	filter    Predicate
}

// Broker fans newly created entries out to live subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	logger      *slog.Logger
}

// NewBroker creates a new log broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for stream. Only entries kept by filter are
// delivered; a nil filter keeps everything.
func (b *Broker) Subscribe(stream models.Stream, filter Predicate) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:        uuid.New().String(),
		Stream:    stream,
		Ch:        make(chan *models.LogEntry, subscriberBuffer),
		CreatedAt: time.Now(),
		filter:    filter,
	}
	b.subscribers[sub.ID] = sub
	b.logger.Debug("subscriber added", "subscriber_id", sub.ID, "stream", stream)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sub.ID]; exists {
		close(sub.Ch)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish delivers entry to every matching subscriber of stream. Subscribers whose
// buffer is full miss the entry.
func (b *Broker) Publish(stream models.Stream, entry *models.LogEntry) {
	if entry == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.Stream != stream || (sub.filter != nil && !sub.filter(entry)) {
			continue
		}
		select {
		case sub.Ch <- entry:
		default:
			b.logger.Warn("subscriber channel full, dropping log entry",
				"subscriber_id", sub.ID,
				"entry_id", entry.ID,
			)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publishing wraps s so that every successful Create is published to b.
func Publishing(s store.Store, b *Broker) store.Store {
	return &publishingStore{Store: s, broker: b}
}

type publishingStore struct {
	store.Store
	broker *Broker
}

func (s *publishingStore) Logs(stream models.Stream) store.LogStore {
	return &publishingLogs{LogStore: s.Store.Logs(stream), stream: stream, broker: s.broker}
}

type publishingLogs struct {
	store.LogStore
	stream models.Stream
	broker *Broker
}

func (l *publishingLogs) Create(ctx context.Context, entry *models.LogEntry) error {
	if err := l.LogStore.Create(ctx, entry); err != nil {
		return err
	}
	cp := *entry
	l.broker.Publish(l.stream, &cp)
	return nil
}
