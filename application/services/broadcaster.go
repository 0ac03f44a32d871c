package services

import (
	"sync"

	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/events"
)

// Broadcaster fans the events of one session out to any number of
// subscribers. Delivery never blocks the engine: a subscriber whose buffer
// is full is dropped and its channel closed.
type Broadcaster struct {
	mu          sync.Mutex
	sessionID   string
	clock       extraction.Clock
	buffer      int
	logger      *zap.Logger
	subscribers map[uint64]chan events.DomainEvent
	nextID      uint64
	closed      bool
}

var _ extraction.Observer = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster whose subscriber channels hold
// buffer events each
func NewBroadcaster(sessionID string, buffer int, clock extraction.Clock, logger *zap.Logger) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		sessionID:   sessionID,
		clock:       clock,
		buffer:      buffer,
		logger:      logger,
		subscribers: make(map[uint64]chan events.DomainEvent),
	}
}

// Subscribe registers a subscriber. The channel is closed after the
// session's terminal event, when the subscriber falls behind, or when
// cancel is called. Subscribing after the session ended yields a closed
// channel.
func (b *Broadcaster) Subscribe() (<-chan events.DomainEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan events.DomainEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch

	return ch, func() { b.unsubscribe(id) }
}

// Subscribers returns the number of live subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Broadcaster) NodeReady(node entities.GraphNode) {
	b.publish(events.NewNodeReady(b.sessionID, node, b.clock.Now()))
}

func (b *Broadcaster) EdgeReady(edge entities.GraphEdge) {
	b.publish(events.NewEdgeReady(b.sessionID, edge, b.clock.Now()))
}

func (b *Broadcaster) FieldUpdate(label, key, value string) {
	b.publish(events.NewFieldUpdated(b.sessionID, label, key, value, b.clock.Now()))
}

func (b *Broadcaster) SessionComplete(summary extraction.Summary) {
	b.publish(events.NewSessionCompleted(b.sessionID, summary.Stats(), b.clock.Now()))
	b.closeAll()
}

func (b *Broadcaster) SessionError(cause error) {
	b.publish(events.NewSessionFailed(b.sessionID, cause, b.clock.Now()))
	b.closeAll()
}

func (b *Broadcaster) publish(event events.DomainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn("Dropping slow subscriber",
				zap.String("sessionID", b.sessionID),
				zap.Uint64("subscriber", id))
			delete(b.subscribers, id)
			close(ch)
		}
	}
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	b.closed = true
}
