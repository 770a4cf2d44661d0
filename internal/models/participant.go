package models

import (
	"encoding/json"
	"time"
)

// Kick records a moderation removal
type Kick struct {
	By string
	At time.Time
}

// Departure is present once a participant is no longer connected.
// A nil departure means the participant is connected.
type Departure struct {
	At   time.Time
	Kick *Kick
}

// Mute is present while a participant is muted. A nil mute means unmuted,
// which always implies the participant may speak.
type Mute struct {
	By        string
	At        time.Time
	CanUnmute bool
}

// Participant is a user's presence in a room. There is at most one per user
// per room; rejoining reactivates the existing record.
type Participant struct {
	UserID    string
	JoinedAt  time.Time
	Departure *Departure
	Mute      *Mute
}

// IsConnected reports whether the participant is currently present
func (p *Participant) IsConnected() bool {
	return p.Departure == nil
}

// IsMuted reports whether the participant is muted
func (p *Participant) IsMuted() bool {
	return p.Mute != nil
}

// CanUnmute reports whether the participant may unmute themselves
func (p *Participant) CanUnmute() bool {
	return p.Mute == nil || p.Mute.CanUnmute
}

// WasKicked reports whether the last departure was a moderation removal
func (p *Participant) WasKicked() bool {
	return p.Departure != nil && p.Departure.Kick != nil
}

// Connect marks the participant present again with a fresh join time
func (p *Participant) Connect(now time.Time) {
	p.JoinedAt = now
	p.Departure = nil
}

// Leave marks the participant as gone
func (p *Participant) Leave(now time.Time) {
	p.Departure = &Departure{At: now}
}

// Kicked marks the participant as removed by actor
func (p *Participant) Kicked(actor string, now time.Time) {
	p.Departure = &Departure{At: now, Kick: &Kick{By: actor, At: now}}
}

// MuteBy mutes the participant on behalf of actor
func (p *Participant) MuteBy(actor string, now time.Time, canUnmute bool) {
	p.Mute = &Mute{By: actor, At: now, CanUnmute: canUnmute}
}

// Unmute clears mute state and provenance
func (p *Participant) Unmute() {
	p.Mute = nil
}

// Clone returns a deep copy of the participant
func (p *Participant) Clone() *Participant {
	clone := *p
	if p.Departure != nil {
		d := *p.Departure
		if d.Kick != nil {
			k := *d.Kick
			d.Kick = &k
		}
		clone.Departure = &d
	}
	if p.Mute != nil {
		m := *p.Mute
		clone.Mute = &m
	}
	return &clone
}

// participantJSON is the flat wire form of a participant
type participantJSON struct {
	UserID      string     `json:"userId"`
	JoinedAt    time.Time  `json:"joinedAt"`
	LeftAt      *time.Time `json:"leftAt,omitempty"`
	IsConnected bool       `json:"isConnected"`
	IsMuted     bool       `json:"isMuted"`
	CanUnmute   bool       `json:"canUnmute"`
	MutedBy     string     `json:"mutedBy,omitempty"`
	MutedAt     *time.Time `json:"mutedAt,omitempty"`
	KickedBy    string     `json:"kickedBy,omitempty"`
	KickedAt    *time.Time `json:"kickedAt,omitempty"`
}

// MarshalJSON flattens the presence and mute variants
func (p Participant) MarshalJSON() ([]byte, error) {
	out := participantJSON{
		UserID:      p.UserID,
		JoinedAt:    p.JoinedAt,
		IsConnected: p.IsConnected(),
		IsMuted:     p.IsMuted(),
		CanUnmute:   p.CanUnmute(),
	}
	if d := p.Departure; d != nil {
		out.LeftAt = &d.At
		if d.Kick != nil {
			out.KickedBy = d.Kick.By
			out.KickedAt = &d.Kick.At
		}
	}
	if m := p.Mute; m != nil {
		out.MutedBy = m.By
		out.MutedAt = &m.At
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the presence and mute variants from the flat form
func (p *Participant) UnmarshalJSON(data []byte) error {
	var in participantJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Participant{UserID: in.UserID, JoinedAt: in.JoinedAt}
	if !in.IsConnected {
		d := &Departure{}
		if in.LeftAt != nil {
			d.At = *in.LeftAt
		}
		if in.KickedBy != "" {
			k := &Kick{By: in.KickedBy}
			if in.KickedAt != nil {
				k.At = *in.KickedAt
			}
			d.Kick = k
		}
		p.Departure = d
	}
	if in.IsMuted {
		m := &Mute{By: in.MutedBy, CanUnmute: in.CanUnmute}
		if in.MutedAt != nil {
			m.At = *in.MutedAt
		}
		p.Mute = m
	}
	return nil
}
