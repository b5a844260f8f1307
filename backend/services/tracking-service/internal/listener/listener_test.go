package listener

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trackhub/backend/libs/framing"
	"trackhub/backend/libs/tcpserver"
	"trackhub/backend/services/tracking-service/internal/broadcast"
	"trackhub/backend/services/tracking-service/internal/decoder"
	"trackhub/backend/services/tracking-service/internal/models"
	"trackhub/backend/services/tracking-service/internal/repository"
)

const canonicalFrame = "imei:359710048216253,tracker,231120,120000,A,17.824858,S,31.053028,E,0.0,0.0"

var fixedNow = time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func newListener(store Store, opts ...Option) *Listener {
	cfg := framing.DefaultConfig()
	cfg.FlushAfter = 20 * time.Millisecond
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(decoder.NewDefaultRegistry(), store, cfg, zap.NewNop(), opts...)
}

func serve(t *testing.T, l *Listener) (net.Conn, <-chan struct{}) {
	t.Helper()
	device, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.ServeConn(context.Background(), &tcpserver.Conn{Conn: server, ID: "test-conn"})
	}()
	t.Cleanup(func() {
		device.Close()
		server.Close()
	})
	return device, done
}

func TestHandleFrameAutoCreatesDeviceOnce(t *testing.T) {
	store := repository.NewMemoryStore()
	l := newListener(store)
	ctx := context.Background()

	first, err := l.HandleFrame(ctx, []byte(canonicalFrame))
	require.NoError(t, err)
	second, err := l.HandleFrame(ctx, []byte(canonicalFrame))
	require.NoError(t, err)

	assert.Equal(t, 1, store.DeviceCount())
	assert.Equal(t, 2, store.PositionCount())
	assert.Equal(t, first.DeviceID, second.DeviceID)

	device, err := store.FindDeviceByIMEI(ctx, "359710048216253")
	require.NoError(t, err)
	assert.Equal(t, "Tracker 359710048216253", device.Name)

	assert.Equal(t, fixedNow, first.Timestamp)
	assert.Equal(t, -17.824858, first.Latitude)
	assert.Equal(t, 31.053028, first.Longitude)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(first.Raw, &raw))
	assert.Equal(t, canonicalFrame, raw["text"])
}

func TestHandleFrameRejectsUnusableFrames(t *testing.T) {
	store := repository.NewMemoryStore()
	l := newListener(store)
	ctx := context.Background()

	_, err := l.HandleFrame(ctx, []byte("tracker,A,17.8,S,31.0,E"))
	assert.ErrorIs(t, err, ErrNoGPSData)

	_, err = l.HandleFrame(ctx, []byte("imei:12345,A,95.0,N,31.0,E"))
	assert.ErrorIs(t, err, ErrOutOfRange)

	assert.Zero(t, store.DeviceCount())
	assert.Zero(t, store.PositionCount())
}

func TestServeConnProcessesFramesInOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	l := newListener(store)
	device, done := serve(t, l)

	go func() {
		_, _ = device.Write([]byte("imei:11111,A,1.0,N,1.0,E\n"))
		_, _ = device.Write([]byte("garbage that decodes to nothing\n"))
		_, _ = device.Write([]byte("imei:11111,A,2.0,N,"))
		_, _ = device.Write([]byte("2.0,E\nimei:22222,A,3.0,S,3.0,W"))
	}()

	waitFor(t, time.Second, func() bool { return store.PositionCount() == 3 })
	device.Close()
	<-done

	list, err := store.ListPositions(context.Background(), models.PositionFilter{Scope: models.GlobalScope(), Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 3)
	// all share one timestamp, so newest-first falls back to descending id
	assert.Equal(t, -3.0, list[0].Latitude)
	assert.Equal(t, 2.0, list[1].Latitude)
	assert.Equal(t, 1.0, list[2].Latitude)
	assert.Equal(t, 2, store.DeviceCount())
}

type flakyStore struct {
	*repository.MemoryStore
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) AppendPosition(ctx context.Context, p *models.Position) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("database unavailable")
	}
	f.mu.Unlock()
	return f.MemoryStore.AppendPosition(ctx, p)
}

func TestServeConnSurvivesStorageFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: repository.NewMemoryStore(), failures: 1}
	l := newListener(store)
	device, _ := serve(t, l)

	go func() {
		_, _ = device.Write([]byte(canonicalFrame + "\n"))
		_, _ = device.Write([]byte(canonicalFrame + "\n"))
	}()

	waitFor(t, time.Second, func() bool { return store.PositionCount() == 1 })
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e broadcast.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func TestHandleFrameBroadcastsWhenEnabled(t *testing.T) {
	store := repository.NewMemoryStore()
	pub := &recordingPublisher{}
	l := newListener(store, WithPublisher(pub))

	_, err := l.HandleFrame(context.Background(), []byte(canonicalFrame))
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "359710048216253", pub.events[0].IMEI)
}
