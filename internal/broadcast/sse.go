package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/navikt/meetrooms/internal/auth"
	"github.com/navikt/meetrooms/internal/models"
	"github.com/navikt/meetrooms/internal/utils"
	"github.com/r3labs/sse/v2"
)

// TopicAuthorizer decides whether identity may subscribe to a topic
type TopicAuthorizer interface {
	AuthorizeTopic(ctx context.Context, identity models.Identity, kind TopicKind, id string) error
}

// SSEBroadcaster fans events out over server-sent events. Every topic is an
// SSE stream, so the stream table is the subscription registry keyed by room,
// project and user id; publishing never scans live connections.
type SSEBroadcaster struct {
	server     *sse.Server
	authorizer TopicAuthorizer
	log        *slog.Logger

	mu          sync.Mutex
	subscribers map[Topic]int
}

// NewSSEBroadcaster creates a broadcaster backed by an r3labs SSE server
func NewSSEBroadcaster(authorizer TopicAuthorizer, log *slog.Logger) *SSEBroadcaster {
	server := sse.New()
	server.AutoStream = true
	server.AutoReplay = false
	server.Headers = map[string]string{
		"X-Accel-Buffering": "no", // Disable nginx proxy buffering
	}

	return &SSEBroadcaster{
		server:      server,
		authorizer:  authorizer,
		log:         log,
		subscribers: make(map[Topic]int),
	}
}

// Publish sends the event to the topic's stream. Topics without
// subscribers are skipped.
func (b *SSEBroadcaster) Publish(ctx context.Context, topic Topic, event models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if !b.server.StreamExists(string(topic)) {
		b.log.Debug("No subscribers for topic", "topic", topic, "event", event.Type)
		return nil
	}

	b.server.Publish(string(topic), &sse.Event{
		ID:    []byte(event.ID),
		Event: []byte(event.Type),
		Data:  data,
	})
	return nil
}

// Subscribers returns the number of open connections on a topic
func (b *SSEBroadcaster) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribers[topic]
}

// ServeHTTP subscribes the authenticated caller to the topic named by the
// "stream" query parameter
func (b *SSEBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	topic := Topic(r.URL.Query().Get("stream"))
	kind, id, err := topic.Parse()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := b.authorizer.AuthorizeTopic(r.Context(), identity, kind, id); err != nil {
		b.log.Info("Refused SSE subscription",
			utils.SafeAttr("user", identity.UserID),
			utils.SafeAttr("topic", string(topic)),
			"error", err)
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	b.track(topic, 1)
	defer b.track(topic, -1)

	b.log.Debug("SSE client connected", utils.SafeAttr("user", identity.UserID), utils.SafeAttr("topic", string(topic)))
	b.server.ServeHTTP(w, r)
	b.log.Debug("SSE client disconnected", utils.SafeAttr("user", identity.UserID), utils.SafeAttr("topic", string(topic)))
}

func (b *SSEBroadcaster) track(topic Topic, delta int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[topic] += delta
	if b.subscribers[topic] <= 0 {
		delete(b.subscribers, topic)
	}
}

// Close disconnects all subscribers
func (b *SSEBroadcaster) Close() {
	b.server.Close()
}
