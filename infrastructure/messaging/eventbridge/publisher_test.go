package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	"github.com/dipan99/mindmapper/domain/events"
)

type fakeClient struct {
	calls  []*eventbridge.PutEventsInput
	err    error
	failAt int
}

func (f *fakeClient) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{Entries: make([]types.PutEventsResultEntry, len(in.Entries))}
	if f.failAt > 0 && f.failAt <= len(in.Entries) {
		out.FailedEntryCount = 1
		out.Entries[f.failAt-1].ErrorCode = aws.String("InternalFailure")
	}
	return out, nil
}

func nodeEvents(t *testing.T, n int) []events.DomainEvent {
	t.Helper()
	out := make([]events.DomainEvent, 0, n)
	for i := 1; i <= n; i++ {
		id, err := valueobjects.NewNodeID(valueobjects.KindQuery, uint64(i))
		require.NoError(t, err)
		out = append(out, events.NewNodeCreated(id, nil, time.Unix(1700000000, 0)))
	}
	return out
}

func TestPublishBatchChunks(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "mindmapper-bus", nil)

	require.NoError(t, p.PublishBatch(context.Background(), nodeEvents(t, 23)))

	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Entries, 10)
	assert.Len(t, client.calls[1].Entries, 10)
	assert.Len(t, client.calls[2].Entries, 3)

	entry := client.calls[0].Entries[0]
	assert.Equal(t, "mindmapper-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, events.Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeNodeCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"mindmapper:node/query-1"}, entry.Resources)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "query-1", detail["node_id"])
	assert.Equal(t, "query", detail["kind"])
}

func TestPublishEmpty(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "", nil)

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Empty(t, client.calls)
	assert.Equal(t, "default", p.eventBusName)
}

func TestPublishFailures(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		client := &fakeClient{err: errors.New("throttled")}
		p := NewPublisher(client, "bus", nil)

		err := p.Publish(context.Background(), nodeEvents(t, 1)[0])
		require.Error(t, err)
		assert.Contains(t, err.Error(), "throttled")
	})

	t.Run("failed entries stop the remaining chunks", func(t *testing.T) {
		client := &fakeClient{failAt: 2}
		p := NewPublisher(client, "bus", nil)

		err := p.PublishBatch(context.Background(), nodeEvents(t, 15))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 events failed")
		assert.Len(t, client.calls, 1)
	})
}
