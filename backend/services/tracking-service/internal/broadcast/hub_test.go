package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/models"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *fakeSubscriber) Deliver(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func sampleEvent() Event {
	device := &models.Device{ID: 3, IMEI: "359710048216253"}
	pos := &models.Position{
		DeviceID:  3,
		Latitude:  -17.824858,
		Longitude: 31.053028,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Raw:       json.RawMessage(`{"text":"x"}`),
	}
	return NewEvent(device, pos)
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))
}

func TestHubDeliversToEverySubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a, b := &fakeSubscriber{}, &fakeSubscriber{}
	hub.Subscribe(a)
	hub.Subscribe(b)

	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(a.payloads[0], &decoded))
	assert.Equal(t, float64(3), decoded["device_id"])
	assert.Equal(t, -17.824858, decoded["latitude"])
	assert.Equal(t, 31.053028, decoded["longitude"])
	for _, key := range []string{"speed", "course", "timestamp", "raw"} {
		assert.Contains(t, decoded, key)
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	broken := &fakeSubscriber{err: ErrClosed}
	healthy := &fakeSubscriber{}
	hub.Subscribe(broken)
	hub.Subscribe(healthy)

	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))
	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))

	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, 2, healthy.count())
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sub := &fakeSubscriber{}
	handle := hub.Subscribe(sub)

	hub.Unsubscribe(handle)
	hub.Unsubscribe(handle)
	hub.Unsubscribe(Handle("never-issued"))

	require.NoError(t, hub.Publish(context.Background(), sampleEvent()))
	assert.Zero(t, sub.count())
	assert.Zero(t, hub.Len())
}

func TestHubSubscriberLeavingMidPublish(t *testing.T) {
	hub := NewHub(zap.NewNop())
	var handle Handle
	late := &fakeSubscriber{}
	handle = hub.Subscribe(SubscriberFunc(func([]byte) error {
		hub.Unsubscribe(handle)
		return nil
	}))
	hub.Subscribe(late)

	assert.Equal(t, 2, hub.PublishRaw([]byte(`{}`)))
	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, 1, late.count())
}

func TestHubPreservesOrderPerSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sub := &fakeSubscriber{}
	hub.Subscribe(sub)

	for i := 0; i < 50; i++ {
		hub.PublishRaw([]byte{byte(i)})
	}
	require.Equal(t, 50, sub.count())
	for i, p := range sub.payloads {
		assert.Equal(t, byte(i), p[0])
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestFanoutJoinsErrors(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sub := &fakeSubscriber{}
	hub.Subscribe(sub)
	boom := errors.New("boom")

	err := Fanout{failingPublisher{err: boom}, nil, hub}.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sub.count())
}
