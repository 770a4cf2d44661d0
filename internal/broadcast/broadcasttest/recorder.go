// Package broadcasttest provides a recording Broadcaster for tests
package broadcasttest

import (
	"context"
	"sync"

	"github.com/navikt/meetrooms/internal/broadcast"
	"github.com/navikt/meetrooms/internal/models"
)

// Published is one recorded publish call
type Published struct {
	Topic broadcast.Topic
	Event models.Event
}

// Recorder captures every published event in order
type Recorder struct {
	mu        sync.RWMutex
	published []Published
	// Err, when set, is returned from Publish after recording
	Err error
}

// Publish implements broadcast.Broadcaster
func (r *Recorder) Publish(ctx context.Context, topic broadcast.Topic, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, Published{Topic: topic, Event: event})
	return r.Err
}

// All returns a copy of everything published so far
func (r *Recorder) All() []Published {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Published, len(r.published))
	copy(out, r.published)
	return out
}

// OfType returns the publishes carrying the given event type
func (r *Recorder) OfType(eventType models.EventType) []Published {
	var out []Published
	for _, p := range r.All() {
		if p.Event.Type == eventType {
			out = append(out, p)
		}
	}
	return out
}

// OnTopic returns the events published to topic
func (r *Recorder) OnTopic(topic broadcast.Topic) []models.Event {
	var out []models.Event
	for _, p := range r.All() {
		if p.Topic == topic {
			out = append(out, p.Event)
		}
	}
	return out
}

// Reset forgets everything recorded
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = nil
}
