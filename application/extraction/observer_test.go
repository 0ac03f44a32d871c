package extraction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/events"
)

func TestObserverFuncs_NilFunctionsAreSkipped(t *testing.T) {
	var nodes int
	obs := ObserverFuncs{OnNodeReady: func(entities.GraphNode) { nodes++ }}

	assert.NotPanics(t, func() {
		obs.NodeReady(entities.GraphNode{})
		obs.EdgeReady(entities.GraphEdge{})
		obs.FieldUpdate("a", "b", "c")
		obs.SessionComplete(Summary{})
		obs.SessionError(errors.New("x"))
	})
	assert.Equal(t, 1, nodes)
}

func TestObservers_FanOutInOrder(t *testing.T) {
	var calls []string
	first := ObserverFuncs{OnFieldUpdate: func(label, _, _ string) { calls = append(calls, "first:"+label) }}
	second := ObserverFuncs{OnFieldUpdate: func(label, _, _ string) { calls = append(calls, "second:"+label) }}

	Observers{first, second}.FieldUpdate("a1", "title", "X")

	assert.Equal(t, []string{"first:a1", "second:a1"}, calls)
}

func TestChannelObserver_DeliversEventsAndCloses(t *testing.T) {
	clock := NewManualClock(testStart)
	ch := NewChannelObserver("session-1", 64, clock)
	engine := NewEngine(nil, ch, zap.NewNop(), WithClock(clock))

	require.NoError(t, engine.StartSession("session-1"))
	require.NoError(t, engine.Consume(nodeA1))
	require.NoError(t, engine.EndOfStream())

	var types []string
	for event := range ch.Events() {
		assert.Equal(t, "session-1", event.GetAggregateID())
		assert.Equal(t, testStart, event.GetTimestamp())
		types = append(types, event.GetEventType())
	}

	assert.Equal(t, []string{
		events.TypeFieldUpdated,
		events.TypeFieldUpdated,
		events.TypeFieldUpdated,
		events.TypeFieldUpdated,
		events.TypeNodeReady,
		events.TypeSessionCompleted,
	}, types)
}

func TestChannelObserver_SessionErrorIsTerminal(t *testing.T) {
	ch := NewChannelObserver("s", 4, nil)
	ch.SessionError(errors.New("boom"))
	ch.FieldUpdate("a", "b", "c")

	event, ok := <-ch.Events()
	require.True(t, ok)
	failed, isFailed := event.(events.SessionFailed)
	require.True(t, isFailed)
	assert.Equal(t, "boom", failed.Cause)
	assert.True(t, events.IsTerminal(event))

	_, ok = <-ch.Events()
	assert.False(t, ok)
}

func TestManualClock(t *testing.T) {
	clock := NewManualClock(testStart)
	var fired []string

	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	clock.AfterFunc(time.Second, func() { fired = append(fired, "early") })
	stopped := clock.AfterFunc(time.Second, func() { fired = append(fired, "stopped") })

	assert.Equal(t, 3, clock.Pending())
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	clock.Advance(500 * time.Millisecond)
	assert.Empty(t, fired)

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, testStart.Add(3500*time.Millisecond), clock.Now())
	assert.Equal(t, 0, clock.Pending())
}
