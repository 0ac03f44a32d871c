package extraction

import (
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/events"
)

// Observer receives the notifications of one session. Calls are made
// synchronously from inside the engine, in emission order; an observer must
// return quickly and must not call back into the engine.
type Observer interface {
	NodeReady(node entities.GraphNode)
	EdgeReady(edge entities.GraphEdge)
	FieldUpdate(label, key, value string)
	SessionComplete(summary Summary)
	SessionError(cause error)
}

// ObserverFuncs adapts plain functions to Observer. Nil functions are skipped.
type ObserverFuncs struct {
	OnNodeReady       func(node entities.GraphNode)
	OnEdgeReady       func(edge entities.GraphEdge)
	OnFieldUpdate     func(label, key, value string)
	OnSessionComplete func(summary Summary)
	OnSessionError    func(cause error)
}

func (f ObserverFuncs) NodeReady(node entities.GraphNode) {
	if f.OnNodeReady != nil {
		f.OnNodeReady(node)
	}
}

func (f ObserverFuncs) EdgeReady(edge entities.GraphEdge) {
	if f.OnEdgeReady != nil {
		f.OnEdgeReady(edge)
	}
}

func (f ObserverFuncs) FieldUpdate(label, key, value string) {
	if f.OnFieldUpdate != nil {
		f.OnFieldUpdate(label, key, value)
	}
}

func (f ObserverFuncs) SessionComplete(summary Summary) {
	if f.OnSessionComplete != nil {
		f.OnSessionComplete(summary)
	}
}

func (f ObserverFuncs) SessionError(cause error) {
	if f.OnSessionError != nil {
		f.OnSessionError(cause)
	}
}

// Observers fans every notification out to each observer in order
type Observers []Observer

func (o Observers) NodeReady(node entities.GraphNode) {
	for _, obs := range o {
		obs.NodeReady(node)
	}
}

func (o Observers) EdgeReady(edge entities.GraphEdge) {
	for _, obs := range o {
		obs.EdgeReady(edge)
	}
}

func (o Observers) FieldUpdate(label, key, value string) {
	for _, obs := range o {
		obs.FieldUpdate(label, key, value)
	}
}

func (o Observers) SessionComplete(summary Summary) {
	for _, obs := range o {
		obs.SessionComplete(summary)
	}
}

func (o Observers) SessionError(cause error) {
	for _, obs := range o {
		obs.SessionError(cause)
	}
}

// ChannelObserver converts notifications into domain events on a buffered
// channel. The channel is closed after the terminal event. Sends block when
// the buffer is full, which stalls the engine; size the buffer for the
// slowest reader.
type ChannelObserver struct {
	sessionID string
	clock     Clock
	events    chan events.DomainEvent
	closed    bool
}

// NewChannelObserver creates a channel observer for a session
func NewChannelObserver(sessionID string, size int, clock Clock) *ChannelObserver {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ChannelObserver{
		sessionID: sessionID,
		clock:     clock,
		events:    make(chan events.DomainEvent, size),
	}
}

// Events returns the event channel
func (c *ChannelObserver) Events() <-chan events.DomainEvent {
	return c.events
}

func (c *ChannelObserver) NodeReady(node entities.GraphNode) {
	c.send(events.NewNodeReady(c.sessionID, node, c.clock.Now()))
}

func (c *ChannelObserver) EdgeReady(edge entities.GraphEdge) {
	c.send(events.NewEdgeReady(c.sessionID, edge, c.clock.Now()))
}

func (c *ChannelObserver) FieldUpdate(label, key, value string) {
	c.send(events.NewFieldUpdated(c.sessionID, label, key, value, c.clock.Now()))
}

func (c *ChannelObserver) SessionComplete(summary Summary) {
	c.send(events.NewSessionCompleted(c.sessionID, summary.Stats(), c.clock.Now()))
	c.close()
}

func (c *ChannelObserver) SessionError(cause error) {
	c.send(events.NewSessionFailed(c.sessionID, cause, c.clock.Now()))
	c.close()
}

func (c *ChannelObserver) send(event events.DomainEvent) {
	if c.closed {
		return
	}
	c.events <- event
}

func (c *ChannelObserver) close() {
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}
