package realtime

import (
	"context"
	"encoding/json"

	"auction-service/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Envelope is the wire form of a live event. An empty UserID means
// broadcast; otherwise the event is delivered only to that user's session.
type Envelope struct {
	UserID string          `json:"user_id,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Publisher pushes serialized live events onto the cross-instance channel
type Publisher interface {
	PublishLiveEvent(ctx context.Context, payload []byte) error
	SubscribeLiveEvents(ctx context.Context) *redis.PubSub
}

// Hub fans live events out to connected sessions. Every event goes through
// Redis pub/sub, including events originating on this instance, so each
// instance delivers to its own sessions from a single path.
type Hub struct {
	registry  *Registry
	publisher Publisher
	logger    *zap.Logger
}

// NewHub creates a hub over a session registry and a pub/sub publisher
func NewHub(registry *Registry, publisher Publisher) *Hub {
	return &Hub{
		registry:  registry,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Registry exposes the session registry for connection handlers
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcast publishes an event to every connected session on every
// instance
func (h *Hub) Broadcast(ctx context.Context, event string, data interface{}) {
	h.publish(ctx, "", event, data)
}

// SendToUser publishes an event addressed to a single user. Delivery is
// best effort; a user with no live session simply misses the event.
func (h *Hub) SendToUser(ctx context.Context, userID, event string, data interface{}) {
	h.publish(ctx, userID, event, data)
}

func (h *Hub) publish(ctx context.Context, userID, event string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal live event payload",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	payload, err := json.Marshal(Envelope{UserID: userID, Event: event, Data: raw})
	if err != nil {
		h.logger.Error("Failed to marshal live event envelope",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	if err := h.publisher.PublishLiveEvent(ctx, payload); err != nil {
		h.logger.Error("Failed to publish live event",
			zap.String("event", event),
			zap.Error(err))
		return
	}
	util.LiveEventsPublishedTotal.WithLabelValues(event).Inc()
}

// Run consumes the cross-instance channel and delivers events to local
// sessions until the context is cancelled. Intended to run in its own
// goroutine.
func (h *Hub) Run(ctx context.Context) {
	sub := h.publisher.SubscribeLiveEvents(ctx)
	defer sub.Close()

	h.logger.Info("Live event subscriber started")
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Error("Malformed live event payload", zap.Error(err))
				continue
			}
			h.deliver(env)
		}
	}
}

// deliver routes one envelope to local sessions. Slow consumers drop
// events rather than stall the hub.
func (h *Hub) deliver(env Envelope) {
	if env.UserID != "" {
		if s, ok := h.registry.Lookup(env.UserID); ok && !h.registry.Send(s, env) {
			h.logger.Warn("Dropping live event for gone or slow session",
				zap.String("user_id", s.UserID),
				zap.String("event", env.Event))
		}
		return
	}
	for _, s := range h.registry.Snapshot() {
		if !h.registry.Send(s, env) {
			h.logger.Warn("Dropping live event for gone or slow session",
				zap.String("user_id", s.UserID),
				zap.String("event", env.Event))
		}
	}
}
