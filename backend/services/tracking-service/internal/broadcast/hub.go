package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by subscribers that can no longer receive.
var ErrClosed = errors.New("broadcast: subscriber closed")

// Subscriber receives serialized events. Deliver must not block.
type Subscriber interface {
	Deliver(payload []byte) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(payload []byte) error

// Deliver calls f.
func (f SubscriberFunc) Deliver(payload []byte) error {
	return f(payload)
}

// Handle identifies a subscription.
type Handle string

type subscription struct {
	handle Handle
	sub    Subscriber
}

// Hub is the in-process registry of realtime subscribers.
type Hub struct {
	mu        sync.Mutex
	subs      map[Handle]Subscriber
	publishMu sync.Mutex
	logger    *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[Handle]Subscriber),
		logger: logger,
	}
}

// Subscribe registers sub and returns its handle.
func (h *Hub) Subscribe(sub Subscriber) Handle {
	handle := Handle(uuid.NewString())
	h.mu.Lock()
	h.subs[handle] = sub
	h.mu.Unlock()
	return handle
}

// Unsubscribe removes the subscription. Unknown handles are ignored.
func (h *Hub) Unsubscribe(handle Handle) {
	h.mu.Lock()
	delete(h.subs, handle)
	h.mu.Unlock()
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish serializes event once and delivers it to every subscriber.
func (h *Hub) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("broadcast: encode event: %w", err)
	}
	h.PublishRaw(payload)
	return nil
}

// PublishRaw delivers an already encoded payload and returns how many
// subscribers accepted it. Subscribers that fail are dropped.
func (h *Hub) PublishRaw(payload []byte) int {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	delivered := 0
	for _, s := range h.snapshot() {
		if err := s.sub.Deliver(payload); err != nil {
			h.logger.Debug("dropping realtime subscriber", zap.String("handle", string(s.handle)), zap.Error(err))
			h.Unsubscribe(s.handle)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) snapshot() []subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]subscription, 0, len(h.subs))
	for handle, sub := range h.subs {
		out = append(out, subscription{handle: handle, sub: sub})
	}
	return out
}
