// Package broadcast publishes room events to topic subscribers
package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/navikt/meetrooms/internal/models"
)

// TopicKind is the audience scope of a topic
type TopicKind string

const (
	KindRoom    TopicKind = "room"
	KindProject TopicKind = "project"
	KindUser    TopicKind = "user"
)

// Topic names a broadcast channel, e.g. "room:<id>" or "user:<id>"
type Topic string

// RoomTopic reaches everyone subscribed to one room
func RoomTopic(roomID string) Topic { return Topic(string(KindRoom) + ":" + roomID) }

// ProjectTopic reaches every member of a project
func ProjectTopic(projectID string) Topic { return Topic(string(KindProject) + ":" + projectID) }

// UserTopic reaches one user, for targeted notices
func UserTopic(userID string) Topic { return Topic(string(KindUser) + ":" + userID) }

// Parse splits a topic into its kind and id
func (t Topic) Parse() (TopicKind, string, error) {
	kind, id, ok := strings.Cut(string(t), ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("malformed topic %q", t)
	}
	switch TopicKind(kind) {
	case KindRoom, KindProject, KindUser:
		return TopicKind(kind), id, nil
	default:
		return "", "", fmt.Errorf("unknown topic kind %q", kind)
	}
}

// Broadcaster publishes events to topic subscribers. Delivery is best effort.
type Broadcaster interface {
	Publish(ctx context.Context, topic Topic, event models.Event) error
}

// Discard drops every event
type Discard struct{}

// Publish implements Broadcaster
func (Discard) Publish(context.Context, Topic, models.Event) error { return nil }
