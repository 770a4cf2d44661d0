package models

import (
	"time"
)

// EventType identifies what happened to a room
type EventType string

const (
	EventRoomCreated         EventType = "room.created"
	EventRoomStarted         EventType = "room.started"
	EventRoomCancelled       EventType = "room.cancelled"
	EventRoomEnded           EventType = "room.ended"
	EventParticipantJoined   EventType = "participant.joined"
	EventParticipantLeft     EventType = "participant.left"
	EventParticipantMuted    EventType = "participant.muted"
	EventParticipantUnmuted  EventType = "participant.unmuted"
	EventParticipantsMuted   EventType = "participants.muted"
	EventParticipantsUnmuted EventType = "participants.unmuted"
	EventParticipantKicked   EventType = "participant.kicked"
	EventSettingsUpdated     EventType = "settings.updated"
	EventWhiteboardUpdated   EventType = "whiteboard.updated"
)

// Event is a control-plane notification published after a committed change
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	RoomID    string         `json:"roomId"`
	ProjectID string         `json:"projectId"`
	Actor     string         `json:"actor,omitempty"`
	Target    string         `json:"target,omitempty"`
	At        time.Time      `json:"at"`
	Payload   map[string]any `json:"payload,omitempty"`
}
