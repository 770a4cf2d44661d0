package models

import (
	"math"
	"time"
)

// RoomStatus represents the lifecycle state of a meeting room
type RoomStatus string

const (
	RoomStatusScheduled RoomStatus = "scheduled"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusEnded     RoomStatus = "ended"
)

// String returns the string representation of a room status
func (s RoomStatus) String() string {
	return string(s)
}

// WhiteboardAccess controls who may write to a room's whiteboard
type WhiteboardAccess string

const (
	WhiteboardAll      WhiteboardAccess = "all"
	WhiteboardHostOnly WhiteboardAccess = "host-only"
	WhiteboardSpecific WhiteboardAccess = "specific"
	WhiteboardDisabled WhiteboardAccess = "disabled"
)

// RoomSettings holds the host-controlled policy of a room
type RoomSettings struct {
	AllowAllToSpeak        bool             `json:"allowAllToSpeak"`
	MuteAllMembers         bool             `json:"muteAllMembers"`
	WhiteboardAccess       WhiteboardAccess `json:"whiteboardAccess"`
	WhiteboardAllowedUsers []string         `json:"whiteboardAllowedUsers"`
	RecordSession          bool             `json:"recordSession"`
	AllowParticipantMute   bool             `json:"allowParticipantMute"`
}

// DefaultRoomSettings returns the settings every new room starts with
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		AllowAllToSpeak:        true,
		WhiteboardAccess:       WhiteboardHostOnly,
		WhiteboardAllowedUsers: []string{},
		AllowParticipantMute:   true,
	}
}

// MeetingRoom is the unit of consistency: participants are only ever
// changed as part of a whole-room read-modify-write.
type MeetingRoom struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	ProjectID          string         `json:"projectId"`
	HostID             string         `json:"hostId"`
	CreatedBy          string         `json:"createdBy"`
	CreatedAt          time.Time      `json:"createdAt"`
	Status             RoomStatus     `json:"status"`
	ScheduledStartTime *time.Time     `json:"scheduledStartTime,omitempty"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
	EndedAt            *time.Time     `json:"endedAt,omitempty"`
	DurationMinutes    int            `json:"durationMinutes"`
	Settings           RoomSettings   `json:"settings"`
	Participants       []*Participant `json:"participants"`
}

// IsHost reports whether userID holds host privileges in the room
func (r *MeetingRoom) IsHost(userID string) bool {
	return r.HostID == userID
}

// Participant returns the record for userID, or nil if the user never joined
func (r *MeetingRoom) Participant(userID string) *Participant {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// ConnectedParticipants returns the participants currently present
func (r *MeetingRoom) ConnectedParticipants() []*Participant {
	connected := make([]*Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.IsConnected() {
			connected = append(connected, p)
		}
	}
	return connected
}

// Activate moves a scheduled room into the active state
func (r *MeetingRoom) Activate(now time.Time) {
	r.Status = RoomStatusActive
	r.StartedAt = &now
}

// End terminates the room, disconnecting everyone still present and
// computing the duration rounded to whole minutes.
func (r *MeetingRoom) End(now time.Time) {
	r.Status = RoomStatusEnded
	r.EndedAt = &now
	if r.StartedAt != nil {
		r.DurationMinutes = DurationMinutes(*r.StartedAt, now)
	}
	for _, p := range r.Participants {
		if p.IsConnected() {
			p.Leave(now)
		}
	}
}

// DurationMinutes returns round((end-start)/60000ms)
func DurationMinutes(start, end time.Time) int {
	return int(math.Round(float64(end.Sub(start).Milliseconds()) / 60000))
}

// CanWriteWhiteboard reports whether userID may draw on the whiteboard
func (r *MeetingRoom) CanWriteWhiteboard(userID string) bool {
	switch r.Settings.WhiteboardAccess {
	case WhiteboardAll:
		p := r.Participant(userID)
		return r.IsHost(userID) || (p != nil && p.IsConnected())
	case WhiteboardHostOnly:
		return r.IsHost(userID)
	case WhiteboardSpecific:
		if r.IsHost(userID) {
			return true
		}
		for _, allowed := range r.Settings.WhiteboardAllowedUsers {
			if allowed == userID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Clone returns a deep copy so callers can mutate without touching shared state
func (r *MeetingRoom) Clone() *MeetingRoom {
	clone := *r
	clone.ScheduledStartTime = cloneTime(r.ScheduledStartTime)
	clone.StartedAt = cloneTime(r.StartedAt)
	clone.EndedAt = cloneTime(r.EndedAt)
	clone.Settings.WhiteboardAllowedUsers = append([]string{}, r.Settings.WhiteboardAllowedUsers...)
	clone.Participants = make([]*Participant, len(r.Participants))
	for i, p := range r.Participants {
		clone.Participants[i] = p.Clone()
	}
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
