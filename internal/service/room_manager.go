// Package service holds the meeting room state machine
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/navikt/meetrooms/internal/broadcast"
	apperrors "github.com/navikt/meetrooms/internal/errors"
	"github.com/navikt/meetrooms/internal/models"
	"github.com/navikt/meetrooms/internal/repository"
	"github.com/navikt/meetrooms/internal/utils"
)

// errUnchanged aborts a read-modify-write that found nothing to do. Stores
// discard the write and the manager reports success with the current state.
var errUnchanged = errors.New("room unchanged")

const (
	defaultHistoryPage  = 1
	defaultHistoryLimit = 20
)

// CreateRoomRequest is the input of Create
type CreateRoomRequest struct {
	Title              string     `json:"title" validate:"required,max=200"`
	ProjectID          string     `json:"projectId" validate:"required"`
	ScheduledStartTime *time.Time `json:"scheduledStartTime,omitempty"`
}

// SettingsUpdate carries the settings fields to merge. Nil fields are left alone.
type SettingsUpdate struct {
	AllowAllToSpeak      *bool `json:"allowAllToSpeak,omitempty"`
	MuteAllMembers       *bool `json:"muteAllMembers,omitempty"`
	RecordSession        *bool `json:"recordSession,omitempty"`
	AllowParticipantMute *bool `json:"allowParticipantMute,omitempty"`
}

// WhiteboardUpdate replaces the whiteboard access mode
type WhiteboardUpdate struct {
	Access       models.WhiteboardAccess `json:"whiteboardAccess" validate:"required,oneof=all host-only specific disabled"`
	AllowedUsers []string                `json:"allowedUsers" validate:"dive,required"`
}

// MuteRequest mutes or unmutes one participant. CanUnmute defaults to true.
type MuteRequest struct {
	Muted     bool  `json:"muted"`
	CanUnmute *bool `json:"canUnmute,omitempty"`
}

// HistoryQuery selects one page of ended rooms. Zero values mean defaults.
type HistoryQuery struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"min=1,max=100"`
}

// HistoryPage is one page of ended rooms, newest first
type HistoryPage struct {
	Rooms []*models.MeetingRoom `json:"rooms"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Total int                   `json:"total"`
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithIDGenerator overrides how room and event ids are minted
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// Manager owns every room mutation. All writes to one room go through a
// per-room lock and the store's atomic update, and the resulting events are
// published before the lock is released so subscribers see commit order.
type Manager struct {
	store       repository.RoomStore
	directory   repository.ProjectDirectory
	broadcaster broadcast.Broadcaster
	log         *slog.Logger
	locks       *roomLocks
	validate    *validator.Validate
	clock       func() time.Time
	newID       func() string
}

// NewManager creates a room manager
func NewManager(store repository.RoomStore, directory repository.ProjectDirectory, broadcaster broadcast.Broadcaster, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		directory:   directory,
		broadcaster: broadcaster,
		log:         log,
		locks:       newRoomLocks(),
		validate:    validator.New(),
		clock:       time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) now() time.Time {
	return m.clock().UTC()
}

// Create opens a room right away or schedules it for later
func (m *Manager) Create(ctx context.Context, identity models.Identity, req CreateRoomRequest) (*models.MeetingRoom, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := m.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid room", err)
	}
	if err := m.requireManager(ctx, identity, req.ProjectID); err != nil {
		return nil, err
	}

	now := m.now()
	room := &models.MeetingRoom{
		ID:           m.newID(),
		Title:        req.Title,
		ProjectID:    req.ProjectID,
		HostID:       identity.UserID,
		CreatedBy:    identity.UserID,
		CreatedAt:    now,
		Status:       models.RoomStatusScheduled,
		Settings:     models.DefaultRoomSettings(),
		Participants: []*models.Participant{},
	}
	if req.ScheduledStartTime != nil && req.ScheduledStartTime.After(now) {
		start := req.ScheduledStartTime.UTC()
		room.ScheduledStartTime = &start
	} else {
		room.Activate(now)
		room.Participants = append(room.Participants, &models.Participant{UserID: identity.UserID, JoinedAt: now})
	}

	unlock := m.locks.lock(room.ID)
	defer unlock()

	if err := m.store.CreateRoom(ctx, room); err != nil {
		return nil, storeError(err, room.ID)
	}

	m.log.Info("Room created",
		"room_id", room.ID,
		utils.SafeAttr("project_id", room.ProjectID),
		"status", room.Status)
	m.publish(ctx, broadcast.ProjectTopic(room.ProjectID), m.event(models.EventRoomCreated, room, identity.UserID, map[string]any{
		"title":  room.Title,
		"status": room.Status,
	}))
	return room, nil
}

// Join connects the caller, applying the room's current speaking policy.
// Joining while already connected changes nothing and announces nothing.
func (m *Manager) Join(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error) {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := m.requireMember(ctx, identity, room.ProjectID); err != nil {
		return nil, err
	}

	var rejoined bool
	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		if err := requireActive(room); err != nil {
			return err
		}
		now := m.now()
		p := room.Participant(identity.UserID)
		switch {
		case p == nil:
			rejoined = false
			p = &models.Participant{UserID: identity.UserID, JoinedAt: now}
			room.Participants = append(room.Participants, p)
		case p.IsConnected():
			return errUnchanged
		default:
			rejoined = true
			p.Connect(now)
		}
		applySpeakingPolicy(room, p, now)
		return nil
	}, func(room *models.MeetingRoom) {
		p := room.Participant(identity.UserID)
		m.publish(ctx, broadcast.RoomTopic(room.ID), m.event(models.EventParticipantJoined, room, identity.UserID, map[string]any{
			"isMuted":   p.IsMuted(),
			"canUnmute": p.CanUnmute(),
			"rejoined":  rejoined,
		}))
	})
}

// applySpeakingPolicy sets the mute state a joining participant starts with.
// The host always joins unmuted.
func applySpeakingPolicy(room *models.MeetingRoom, p *models.Participant, now time.Time) {
	settings := room.Settings
	shouldMute := (!settings.AllowAllToSpeak || settings.MuteAllMembers) && !room.IsHost(p.UserID)
	if shouldMute {
		p.MuteBy(room.HostID, now, false)
		return
	}
	p.Unmute()
}

// Leave disconnects the caller. Leaving without being connected is a no-op.
func (m *Manager) Leave(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error) {
	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		p := room.Participant(identity.UserID)
		if p == nil || !p.IsConnected() {
			return errUnchanged
		}
		p.Leave(m.now())
		return nil
	}, func(room *models.MeetingRoom) {
		m.publish(ctx, broadcast.RoomTopic(room.ID), m.event(models.EventParticipantLeft, room, identity.UserID, map[string]any{
			"kicked": false,
		}))
	})
}

// End terminates an active room and disconnects everyone still present
func (m *Manager) End(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error) {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireHostOrAdmin(identity, room); err != nil {
		return nil, err
	}

	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		if room.Status != models.RoomStatusActive {
			return apperrors.InvalidState("room is %s, only active rooms can be ended", room.Status)
		}
		room.End(m.now())
		return nil
	}, func(room *models.MeetingRoom) {
		m.log.Info("Room ended", "room_id", room.ID, "duration_minutes", room.DurationMinutes)
		payload := map[string]any{"durationMinutes": room.DurationMinutes}
		m.publish(ctx, broadcast.RoomTopic(room.ID), m.event(models.EventRoomEnded, room, identity.UserID, payload))
		m.publish(ctx, broadcast.ProjectTopic(room.ProjectID), m.event(models.EventRoomEnded, room, identity.UserID, payload))
	})
}

// Cancel deletes a scheduled room. Cancelled rooms leave no history.
func (m *Manager) Cancel(ctx context.Context, identity models.Identity, roomID string) error {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return err
	}
	if err := requireHostOrAdmin(identity, room); err != nil {
		return err
	}

	unlock := m.locks.lock(roomID)
	defer unlock()

	deleted, err := m.store.DeleteRoom(ctx, roomID, func(room *models.MeetingRoom) error {
		if room.Status != models.RoomStatusScheduled {
			return apperrors.InvalidState("room is %s, only scheduled rooms can be cancelled", room.Status)
		}
		return nil
	})
	if err != nil {
		return storeError(err, roomID)
	}

	m.log.Info("Room cancelled", "room_id", deleted.ID)
	m.publish(ctx, broadcast.ProjectTopic(deleted.ProjectID), m.event(models.EventRoomCancelled, deleted, identity.UserID, nil))
	return nil
}

// SetMute mutes or unmutes one connected participant. Anyone may target
// themselves; targeting others takes the host or an admin.
func (m *Manager) SetMute(ctx context.Context, identity models.Identity, roomID, targetID string, req MuteRequest) (*models.MeetingRoom, error) {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	self := identity.UserID == targetID
	moderator := room.IsHost(identity.UserID) || identity.IsAdmin()
	if !self && !moderator {
		return nil, apperrors.PermissionDenied("only the host or an admin can mute other participants")
	}

	canUnmute := true
	if req.CanUnmute != nil && !self {
		canUnmute = *req.CanUnmute
	}

	eventType := models.EventParticipantUnmuted
	if req.Muted {
		eventType = models.EventParticipantMuted
	}

	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		p, err := connectedParticipant(room, targetID)
		if err != nil {
			return err
		}
		if req.Muted {
			// keep the host's mute (and its canUnmute) when a participant mutes themselves again
			if self && !moderator && p.IsMuted() {
				return errUnchanged
			}
			p.MuteBy(identity.UserID, m.now(), canUnmute)
			return nil
		}
		if !p.IsMuted() {
			return errUnchanged
		}
		if self && !moderator && !p.CanUnmute() {
			return apperrors.PermissionDenied("you were muted by the host and cannot unmute yourself")
		}
		p.Unmute()
		return nil
	}, func(room *models.MeetingRoom) {
		event := m.event(eventType, room, identity.UserID, map[string]any{
			"canUnmute": room.Participant(targetID).CanUnmute(),
		})
		event.Target = targetID
		m.publish(ctx, broadcast.RoomTopic(room.ID), event)
	})
}

// MuteAll mutes every connected participant except the host and makes the
// muted policy stick for later joins
func (m *Manager) MuteAll(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error) {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireHostOrAdmin(identity, room); err != nil {
		return nil, err
	}

	var muted []string
	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		if err := requireActive(room); err != nil {
			return err
		}
		now := m.now()
		muted = muted[:0]
		for _, p := range room.ConnectedParticipants() {
			if room.IsHost(p.UserID) {
				continue
			}
			p.MuteBy(identity.UserID, now, false)
			muted = append(muted, p.UserID)
		}
		room.Settings.MuteAllMembers = true
		return nil
	}, func(room *models.MeetingRoom) {
		m.publish(ctx, broadcast.RoomTopic(room.ID), m.event(models.EventParticipantsMuted, room, identity.UserID, map[string]any{
			"userIds": muted,
		}))
	})
}

// UnmuteAll clears mute state for every connected participant and lifts the
// muted policy for later joins
func (m *Manager) UnmuteAll(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error) {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireHostOrAdmin(identity, room); err != nil {
		return nil, err
	}

	var unmuted []string
	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		if err := requireActive(room); err != nil {
			return err
		}
		unmuted = unmuted[:0]
		for _, p := range room.ConnectedParticipants() {
			if p.IsMuted() {
				unmuted = append(unmuted, p.UserID)
			}
			p.Unmute()
		}
		room.Settings.MuteAllMembers = false
		return nil
	}, func(room *models.MeetingRoom) {
		m.publish(ctx, broadcast.RoomTopic(room.ID), m.event(models.EventParticipantsUnmuted, room, identity.UserID, map[string]any{
			"userIds": unmuted,
		}))
	})
}

// Kick removes a connected participant. The removed user gets a targeted
// notice and the room sees an ordinary departure flagged as a kick.
func (m *Manager) Kick(ctx context.Context, identity models.Identity, roomID, targetID string) (*models.MeetingRoom, error) {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireHostOrAdmin(identity, room); err != nil {
		return nil, err
	}
	if room.IsHost(targetID) {
		return nil, apperrors.Validation("the host cannot be kicked")
	}

	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		p, err := connectedParticipant(room, targetID)
		if err != nil {
			return err
		}
		p.Kicked(identity.UserID, m.now())
		return nil
	}, func(room *models.MeetingRoom) {
		m.log.Info("Participant kicked", "room_id", room.ID, utils.SafeAttr("target", targetID))

		notice := m.event(models.EventParticipantKicked, room, identity.UserID, map[string]any{"title": room.Title})
		notice.Target = targetID
		m.publish(ctx, broadcast.UserTopic(targetID), notice)

		left := m.event(models.EventParticipantLeft, room, targetID, map[string]any{
			"kicked":   true,
			"kickedBy": identity.UserID,
		})
		left.Target = targetID
		m.publish(ctx, broadcast.RoomTopic(room.ID), left)
	})
}

// UpdateSettings shallow-merges the supplied fields into the room settings
func (m *Manager) UpdateSettings(ctx context.Context, identity models.Identity, roomID string, update SettingsUpdate) (*models.MeetingRoom, error) {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireHostOrAdmin(identity, room); err != nil {
		return nil, err
	}

	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		if room.Status == models.RoomStatusEnded {
			return apperrors.InvalidState("room has ended")
		}
		settings := &room.Settings
		if update.AllowAllToSpeak != nil {
			settings.AllowAllToSpeak = *update.AllowAllToSpeak
		}
		if update.MuteAllMembers != nil {
			settings.MuteAllMembers = *update.MuteAllMembers
		}
		if update.RecordSession != nil {
			settings.RecordSession = *update.RecordSession
		}
		if update.AllowParticipantMute != nil {
			settings.AllowParticipantMute = *update.AllowParticipantMute
		}
		return nil
	}, func(room *models.MeetingRoom) {
		m.publish(ctx, broadcast.RoomTopic(room.ID), m.event(models.EventSettingsUpdated, room, identity.UserID, map[string]any{
			"settings": room.Settings,
		}))
	})
}

// UpdateWhiteboard changes who may write to the whiteboard. The allowed
// user set is kept only for the specific mode.
func (m *Manager) UpdateWhiteboard(ctx context.Context, identity models.Identity, roomID string, update WhiteboardUpdate) (*models.MeetingRoom, error) {
	if err := m.validate.Struct(update); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid whiteboard access", err)
	}
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireHostOrAdmin(identity, room); err != nil {
		return nil, err
	}

	return m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		if room.Status == models.RoomStatusEnded {
			return apperrors.InvalidState("room has ended")
		}
		room.Settings.WhiteboardAccess = update.Access
		room.Settings.WhiteboardAllowedUsers = []string{}
		if update.Access == models.WhiteboardSpecific {
			room.Settings.WhiteboardAllowedUsers = lo.Uniq(update.AllowedUsers)
		}
		return nil
	}, func(room *models.MeetingRoom) {
		m.publish(ctx, broadcast.RoomTopic(room.ID), m.event(models.EventWhiteboardUpdated, room, identity.UserID, map[string]any{
			"whiteboardAccess":       room.Settings.WhiteboardAccess,
			"whiteboardAllowedUsers": room.Settings.WhiteboardAllowedUsers,
		}))
	})
}

// GetRoom returns one room to a project member or an admin
func (m *Manager) GetRoom(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error) {
	room, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := m.requireMember(ctx, identity, room.ProjectID); err != nil {
		return nil, err
	}
	return room, nil
}

// ListActive returns the active rooms visible to the caller, newest first
func (m *Manager) ListActive(ctx context.Context, identity models.Identity) ([]*models.MeetingRoom, error) {
	rooms, err := m.list(ctx, identity, models.RoomStatusActive)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return timeOf(rooms[i].StartedAt).After(timeOf(rooms[j].StartedAt))
	})
	return rooms, nil
}

// ListScheduled returns the scheduled rooms visible to the caller, soonest first
func (m *Manager) ListScheduled(ctx context.Context, identity models.Identity) ([]*models.MeetingRoom, error) {
	rooms, err := m.list(ctx, identity, models.RoomStatusScheduled)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return timeOf(rooms[i].ScheduledStartTime).Before(timeOf(rooms[j].ScheduledStartTime))
	})
	return rooms, nil
}

// ListHistory returns one page of ended rooms visible to the caller, most
// recently ended first
func (m *Manager) ListHistory(ctx context.Context, identity models.Identity, query HistoryQuery) (*HistoryPage, error) {
	if query.Page == 0 {
		query.Page = defaultHistoryPage
	}
	if query.Limit == 0 {
		query.Limit = defaultHistoryLimit
	}
	if err := m.validate.Struct(query); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid pagination", err)
	}

	rooms, err := m.list(ctx, identity, models.RoomStatusEnded)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return timeOf(rooms[i].EndedAt).After(timeOf(rooms[j].EndedAt))
	})

	return &HistoryPage{
		Rooms: lo.Subset(rooms, (query.Page-1)*query.Limit, uint(query.Limit)),
		Page:  query.Page,
		Limit: query.Limit,
		Total: len(rooms),
	}, nil
}

// promote activates one due scheduled room. Rooms that were cancelled,
// already started or rescheduled in the meantime are left alone.
func (m *Manager) promote(ctx context.Context, roomID string) (bool, error) {
	promoted := false
	_, err := m.mutate(ctx, roomID, func(room *models.MeetingRoom) error {
		promoted = false
		now := m.now()
		if room.Status != models.RoomStatusScheduled {
			return errUnchanged
		}
		if room.ScheduledStartTime != nil && room.ScheduledStartTime.After(now) {
			return errUnchanged
		}
		room.Activate(now)
		promoted = true
		return nil
	}, func(room *models.MeetingRoom) {
		m.log.Info("Room started", "room_id", room.ID, utils.SafeAttr("project_id", room.ProjectID))
		m.publish(ctx, broadcast.ProjectTopic(room.ProjectID), m.event(models.EventRoomStarted, room, "", map[string]any{
			"title": room.Title,
		}))
	})
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		return false, nil
	}
	return promoted, err
}

// dueRooms lists scheduled rooms whose start time has passed
func (m *Manager) dueRooms(ctx context.Context) ([]*models.MeetingRoom, error) {
	rooms, err := m.store.ListRooms(ctx, models.RoomFilter{
		Statuses:    []models.RoomStatus{models.RoomStatusScheduled},
		AllProjects: true,
	})
	if err != nil {
		return nil, storeError(err, "")
	}
	now := m.now()
	return lo.Filter(rooms, func(room *models.MeetingRoom, _ int) bool {
		return room.ScheduledStartTime == nil || !room.ScheduledStartTime.After(now)
	}), nil
}

// mutate runs fn as one atomic update of the room while holding the room
// lock. announce runs after the commit, still under the lock.
func (m *Manager) mutate(ctx context.Context, roomID string, fn repository.MutateFunc, announce func(*models.MeetingRoom)) (*models.MeetingRoom, error) {
	unlock := m.locks.lock(roomID)
	defer unlock()

	var current *models.MeetingRoom
	updated, err := m.store.UpdateRoom(ctx, roomID, func(room *models.MeetingRoom) error {
		current = room
		return fn(room)
	})
	if errors.Is(err, errUnchanged) {
		return current, nil
	}
	if err != nil {
		return nil, storeError(err, roomID)
	}
	if announce != nil {
		announce(updated)
	}
	return updated, nil
}

func (m *Manager) load(ctx context.Context, roomID string) (*models.MeetingRoom, error) {
	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, storeError(err, roomID)
	}
	return room, nil
}

func (m *Manager) list(ctx context.Context, identity models.Identity, status models.RoomStatus) ([]*models.MeetingRoom, error) {
	filter := models.RoomFilter{
		Statuses:    []models.RoomStatus{status},
		AllProjects: identity.IsAdmin(),
	}
	if !identity.IsAdmin() {
		projectIDs, err := m.directory.ProjectsFor(ctx, identity.UserID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "project lookup failed", err)
		}
		filter.ProjectIDs = projectIDs
	}
	rooms, err := m.store.ListRooms(ctx, filter)
	if err != nil {
		return nil, storeError(err, "")
	}
	return rooms, nil
}

func (m *Manager) requireMember(ctx context.Context, identity models.Identity, projectID string) error {
	return requireMember(ctx, m.directory, identity, projectID)
}

func requireMember(ctx context.Context, directory repository.ProjectDirectory, identity models.Identity, projectID string) error {
	if identity.IsAdmin() {
		return nil
	}
	_, ok, err := directory.ProjectRole(ctx, projectID, identity.UserID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "project lookup failed", err)
	}
	if !ok {
		return apperrors.PermissionDenied("not a member of this project")
	}
	return nil
}

func (m *Manager) requireManager(ctx context.Context, identity models.Identity, projectID string) error {
	if identity.IsAdmin() {
		return nil
	}
	role, ok, err := m.directory.ProjectRole(ctx, projectID, identity.UserID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "project lookup failed", err)
	}
	if !ok || role != models.ProjectRoleManager {
		return apperrors.PermissionDenied("only an admin or the project manager can create rooms")
	}
	return nil
}

func requireHostOrAdmin(identity models.Identity, room *models.MeetingRoom) error {
	if room.IsHost(identity.UserID) || identity.IsAdmin() {
		return nil
	}
	return apperrors.PermissionDenied("only the host or an admin can do this")
}

func requireActive(room *models.MeetingRoom) error {
	if room.Status != models.RoomStatusActive {
		return apperrors.NotFound("no active room %s", room.ID)
	}
	return nil
}

func connectedParticipant(room *models.MeetingRoom, userID string) (*models.Participant, error) {
	if err := requireActive(room); err != nil {
		return nil, err
	}
	p := room.Participant(userID)
	if p == nil || !p.IsConnected() {
		return nil, apperrors.NotFound("participant is not connected")
	}
	return p, nil
}

// storeError maps store failures onto the domain taxonomy. Domain errors
// raised inside a mutation pass through untouched.
func storeError(err error, roomID string) error {
	var domainErr *apperrors.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, models.ErrRoomNotFound):
		return apperrors.NotFound("room %s not found", roomID)
	default:
		return apperrors.Wrap(apperrors.CodeInternal, "room store failure", err)
	}
}

func (m *Manager) event(eventType models.EventType, room *models.MeetingRoom, actor string, payload map[string]any) models.Event {
	return models.Event{
		ID:        m.newID(),
		Type:      eventType,
		RoomID:    room.ID,
		ProjectID: room.ProjectID,
		Actor:     actor,
		At:        m.now(),
		Payload:   payload,
	}
}

// publish delivers best effort. A failed broadcast never undoes a committed
// change, and delivery outlives a cancelled request.
func (m *Manager) publish(ctx context.Context, topic broadcast.Topic, event models.Event) {
	if err := m.broadcaster.Publish(context.WithoutCancel(ctx), topic, event); err != nil {
		m.log.Warn("Failed to publish event",
			utils.SafeAttr("topic", string(topic)),
			"event", event.Type,
			"room_id", event.RoomID,
			"error", err)
	}
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
