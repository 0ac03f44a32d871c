package eventbridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brain2-extractor/domain/events"
	"brain2-extractor/pkg/errors"
)

type fakeEventBridge struct {
	calls  [][]types.PutEventsRequestEntry
	err    error
	failAt int // 1-based entry index reported as failed, 0 for none
}

func (f *fakeEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, params.Entries)

	out := &eventbridge.PutEventsOutput{Entries: make([]types.PutEventsResultEntry, len(params.Entries))}
	if f.failAt > 0 && f.failAt <= len(params.Entries) {
		out.FailedEntryCount = 1
		out.Entries[f.failAt-1] = types.PutEventsResultEntry{
			ErrorCode:    aws.String("InternalFailure"),
			ErrorMessage: aws.String("try again"),
		}
	}
	return out, nil
}

func fieldEvents(n int) []events.DomainEvent {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, events.NewFieldUpdated("s1", "a1", "title", "Cells", at))
	}
	return out
}

func TestPublisher_PublishBatch(t *testing.T) {
	tests := []struct {
		name    string
		events  int
		batches []int
	}{
		{name: "empty", events: 0, batches: nil},
		{name: "single", events: 1, batches: []int{1}},
		{name: "exact batch", events: 10, batches: []int{10}},
		{name: "split", events: 23, batches: []int{10, 10, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeEventBridge{}
			publisher := NewPublisher(client, "bus", "brain2.extractor", nil)

			require.NoError(t, publisher.PublishBatch(context.Background(), fieldEvents(tt.events)))

			var sizes []int
			for _, call := range client.calls {
				sizes = append(sizes, len(call))
			}
			assert.Equal(t, tt.batches, sizes)
		})
	}
}

func TestPublisher_Entry(t *testing.T) {
	client := &fakeEventBridge{}
	publisher := NewPublisher(client, "bus", "brain2.extractor", nil)

	event := events.NewSessionCompleted("s1", events.SessionStats{NodesEmitted: 2, Reason: "end_of_stream"}, time.Now())
	require.NoError(t, publisher.Publish(context.Background(), event))
	require.Len(t, client.calls, 1)

	entry := client.calls[0][0]
	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, "brain2.extractor", aws.ToString(entry.Source))
	assert.Equal(t, events.TypeSessionCompleted, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"arn:aws:brain2:::session/s1"}, entry.Resources)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "s1", detail["aggregate_id"])
	assert.Equal(t, float64(2), detail["stats"].(map[string]interface{})["nodes_emitted"])
}

func TestPublisher_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("client error", func(t *testing.T) {
		client := &fakeEventBridge{err: stderrors.New("throttled")}
		err := NewPublisher(client, "bus", "src", nil).PublishBatch(ctx, fieldEvents(3))
		assert.True(t, errors.IsType(err, errors.ErrorTypeExternal))
	})

	t.Run("failed entry stops later batches", func(t *testing.T) {
		client := &fakeEventBridge{failAt: 2}
		err := NewPublisher(client, "bus", "src", nil).PublishBatch(ctx, fieldEvents(15))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 10 events failed")
		assert.Len(t, client.calls, 1)
	})
}
