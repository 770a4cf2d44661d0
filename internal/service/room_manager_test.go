package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/navikt/meetrooms/internal/broadcast"
	"github.com/navikt/meetrooms/internal/broadcast/broadcasttest"
	apperrors "github.com/navikt/meetrooms/internal/errors"
	"github.com/navikt/meetrooms/internal/models"
	"github.com/navikt/meetrooms/internal/repository"
	"github.com/navikt/meetrooms/internal/repository/memory"
	"github.com/navikt/meetrooms/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	host     = models.Identity{UserID: "host", Role: models.RoleMember}
	alice    = models.Identity{UserID: "alice", Role: models.RoleMember}
	bob      = models.Identity{UserID: "bob", Role: models.RoleMember}
	admin    = models.Identity{UserID: "root", Role: models.RoleAdmin}
	outsider = models.Identity{UserID: "eve", Role: models.RoleMember}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	repo     *memory.Repository
	recorder *broadcasttest.Recorder
	clock    *fakeClock
	manager  *service.Manager
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore lets a test wrap the memory store, e.g. to inject failures
func newFixtureWithStore(t *testing.T, wrap func(*memory.Repository) repository.RoomStore) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := memory.NewRepository()
	require.NoError(t, repo.SetProjectMember(ctx, "p1", "host", models.ProjectRoleManager))
	require.NoError(t, repo.SetProjectMember(ctx, "p1", "alice", models.ProjectRoleMember))
	require.NoError(t, repo.SetProjectMember(ctx, "p1", "bob", models.ProjectRoleMember))
	require.NoError(t, repo.SetProjectMember(ctx, "p2", "bob", models.ProjectRoleManager))

	var store repository.RoomStore = repo
	if wrap != nil {
		store = wrap(repo)
	}

	clock := &fakeClock{now: time.Date(2025, 5, 8, 10, 0, 0, 0, time.UTC)}
	recorder := &broadcasttest.Recorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		repo:     repo,
		recorder: recorder,
		clock:    clock,
		manager:  service.NewManager(store, repo, recorder, log, service.WithClock(clock.Now)),
	}
}

func (f *fixture) activeRoom(t *testing.T) *models.MeetingRoom {
	t.Helper()
	room, err := f.manager.Create(context.Background(), host, service.CreateRoomRequest{Title: "Standup", ProjectID: "p1"})
	require.NoError(t, err)
	return room
}

func (f *fixture) join(t *testing.T, roomID string, who ...models.Identity) {
	t.Helper()
	for _, identity := range who {
		_, err := f.manager.Join(context.Background(), identity, roomID)
		require.NoError(t, err)
	}
}

func (f *fixture) stored(t *testing.T, roomID string) *models.MeetingRoom {
	t.Helper()
	room, err := f.repo.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	return room
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.GetCode(err), err.Error())
}

func TestCreateActiveRoom(t *testing.T) {
	f := newFixture(t)

	room := f.activeRoom(t)

	assert.Equal(t, models.RoomStatusActive, room.Status)
	require.NotNil(t, room.StartedAt)
	assert.Equal(t, f.clock.Now(), *room.StartedAt)
	assert.Nil(t, room.ScheduledStartTime)
	assert.Equal(t, "host", room.HostID)
	require.Len(t, room.Participants, 1)
	creator := room.Participants[0]
	assert.Equal(t, "host", creator.UserID)
	assert.True(t, creator.IsConnected())
	assert.False(t, creator.IsMuted())
	assert.True(t, creator.CanUnmute())
	assert.Equal(t, models.DefaultRoomSettings(), room.Settings)

	events := f.recorder.OnTopic(broadcast.ProjectTopic("p1"))
	require.Len(t, events, 1)
	assert.Equal(t, models.EventRoomCreated, events[0].Type)
	assert.Equal(t, room.ID, events[0].RoomID)
}

func TestCreateScheduledRoom(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now().Add(5 * time.Minute)

	room, err := f.manager.Create(context.Background(), host, service.CreateRoomRequest{
		Title:              "Planning",
		ProjectID:          "p1",
		ScheduledStartTime: &start,
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoomStatusScheduled, room.Status)
	assert.Empty(t, room.Participants)
	assert.Nil(t, room.StartedAt)
	require.NotNil(t, room.ScheduledStartTime)
	assert.True(t, start.Equal(*room.ScheduledStartTime))
}

func TestCreateWithPastStartTimeIsActive(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now().Add(-time.Minute)

	room, err := f.manager.Create(context.Background(), host, service.CreateRoomRequest{
		Title:              "Late",
		ProjectID:          "p1",
		ScheduledStartTime: &start,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusActive, room.Status)
	assert.Nil(t, room.ScheduledStartTime)
}

func TestCreateAuthorizationAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, alice, service.CreateRoomRequest{Title: "x", ProjectID: "p1"})
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.manager.Create(ctx, bob, service.CreateRoomRequest{Title: "x", ProjectID: "p1"})
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.manager.Create(ctx, admin, service.CreateRoomRequest{Title: "x", ProjectID: "p9"})
	assert.NoError(t, err)

	_, err = f.manager.Create(ctx, host, service.CreateRoomRequest{Title: "   ", ProjectID: "p1"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.manager.Create(ctx, host, service.CreateRoomRequest{Title: strings.Repeat("a", 201), ProjectID: "p1"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.manager.Create(ctx, host, service.CreateRoomRequest{Title: "x"})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestDuplicateJoinIsNoop(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t)

	first, err := f.manager.Join(context.Background(), alice, room.ID)
	require.NoError(t, err)
	second, err := f.manager.Join(context.Background(), alice, room.ID)
	require.NoError(t, err)

	assert.Len(t, second.Participants, 2)
	assert.Equal(t, first.Participant("alice").JoinedAt, second.Participant("alice").JoinedAt)
	assert.Len(t, f.stored(t, room.ID).Participants, 2)
	assert.Len(t, f.recorder.OfType(models.EventParticipantJoined), 1)
}

func TestDuplicateJoinKeepsMuteState(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t)
	f.join(t, room.ID, alice)

	_, err := f.manager.SetMute(context.Background(), host, room.ID, "alice", service.MuteRequest{Muted: true})
	require.NoError(t, err)

	again, err := f.manager.Join(context.Background(), alice, room.ID)
	require.NoError(t, err)
	assert.True(t, again.Participant("alice").IsMuted())
}

func TestJoinPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)

	_, err := f.manager.Join(ctx, outsider, room.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.manager.Join(ctx, admin, room.ID)
	assert.NoError(t, err, "admins join any room")

	_, err = f.manager.Join(ctx, alice, "missing")
	assertCode(t, err, apperrors.CodeNotFound)

	start := f.clock.Now().Add(time.Hour)
	scheduled, err := f.manager.Create(ctx, host, service.CreateRoomRequest{Title: "Later", ProjectID: "p1", ScheduledStartTime: &start})
	require.NoError(t, err)
	_, err = f.manager.Join(ctx, alice, scheduled.ID)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestMuteAllThenFreshJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice)

	muted, err := f.manager.MuteAll(ctx, host, room.ID)
	require.NoError(t, err)
	assert.True(t, muted.Settings.MuteAllMembers)
	assert.True(t, muted.Participant("alice").IsMuted())
	assert.False(t, muted.Participant("alice").CanUnmute())
	assert.False(t, muted.Participant("host").IsMuted(), "host is exempt")

	joined, err := f.manager.Join(ctx, bob, room.ID)
	require.NoError(t, err)
	newcomer := joined.Participant("bob")
	assert.True(t, newcomer.IsMuted())
	assert.False(t, newcomer.CanUnmute())
	assert.Equal(t, "host", newcomer.Mute.By)
	assert.Equal(t, f.clock.Now(), newcomer.Mute.At)
}

func TestHostRejoinAfterMuteAllIsUnmuted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)

	_, err := f.manager.MuteAll(ctx, host, room.ID)
	require.NoError(t, err)
	_, err = f.manager.Leave(ctx, host, room.ID)
	require.NoError(t, err)

	rejoined, err := f.manager.Join(ctx, host, room.ID)
	require.NoError(t, err)
	p := rejoined.Participant("host")
	assert.True(t, p.IsConnected())
	assert.False(t, p.IsMuted())
	assert.True(t, p.CanUnmute())
}

func TestRejoinReappliesCurrentPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice, bob)

	// alice leaves muted and comes back after unmute-all
	_, err := f.manager.MuteAll(ctx, host, room.ID)
	require.NoError(t, err)
	_, err = f.manager.Leave(ctx, alice, room.ID)
	require.NoError(t, err)
	_, err = f.manager.UnmuteAll(ctx, host, room.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	rejoined, err := f.manager.Join(ctx, alice, room.ID)
	require.NoError(t, err)
	p := rejoined.Participant("alice")
	assert.False(t, p.IsMuted())
	assert.True(t, p.CanUnmute())
	assert.Nil(t, p.Departure)
	assert.Equal(t, f.clock.Now(), p.JoinedAt)
	assert.Len(t, rejoined.Participants, 3, "rejoin reuses the record")

	// bob leaves unmuted and comes back after mute-all
	_, err = f.manager.Leave(ctx, bob, room.ID)
	require.NoError(t, err)
	_, err = f.manager.MuteAll(ctx, host, room.ID)
	require.NoError(t, err)
	rejoined, err = f.manager.Join(ctx, bob, room.ID)
	require.NoError(t, err)
	assert.True(t, rejoined.Participant("bob").IsMuted())
	assert.False(t, rejoined.Participant("bob").CanUnmute())

	joins := f.recorder.OfType(models.EventParticipantJoined)
	require.Len(t, joins, 4)
	assert.Equal(t, true, joins[2].Event.Payload["rejoined"])
}

func TestJoinWhenSpeakingDisallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)

	off := false
	_, err := f.manager.UpdateSettings(ctx, host, room.ID, service.SettingsUpdate{AllowAllToSpeak: &off})
	require.NoError(t, err)

	joined, err := f.manager.Join(ctx, alice, room.ID)
	require.NoError(t, err)
	assert.True(t, joined.Participant("alice").IsMuted())
	assert.False(t, joined.Participant("alice").CanUnmute())
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice)

	_, err := f.manager.Leave(ctx, bob, room.ID)
	require.NoError(t, err, "leaving without a record is a no-op")

	f.clock.Advance(time.Minute)
	left, err := f.manager.Leave(ctx, alice, room.ID)
	require.NoError(t, err)
	p := left.Participant("alice")
	assert.False(t, p.IsConnected())
	assert.Equal(t, f.clock.Now(), p.Departure.At)
	assert.False(t, p.WasKicked())

	_, err = f.manager.Leave(ctx, alice, room.ID)
	require.NoError(t, err)

	lefts := f.recorder.OfType(models.EventParticipantLeft)
	require.Len(t, lefts, 1)
	assert.Equal(t, "alice", lefts[0].Event.Actor)

	_, err = f.manager.Leave(ctx, alice, "missing")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestEndComputesDurationAndDisconnectsEveryone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice, bob)

	f.clock.Advance(125 * time.Second)
	ended, err := f.manager.End(ctx, host, room.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RoomStatusEnded, ended.Status)
	assert.Equal(t, 2, ended.DurationMinutes)
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, f.clock.Now(), *ended.EndedAt)
	for _, p := range f.stored(t, room.ID).Participants {
		assert.False(t, p.IsConnected(), p.UserID)
		assert.Equal(t, f.clock.Now(), p.Departure.At)
	}

	endedEvents := f.recorder.OfType(models.EventRoomEnded)
	require.Len(t, endedEvents, 2)
	assert.Equal(t, broadcast.RoomTopic(room.ID), endedEvents[0].Topic)
	assert.Equal(t, broadcast.ProjectTopic("p1"), endedEvents[1].Topic)
	assert.Equal(t, 2, endedEvents[0].Event.Payload["durationMinutes"])
}

func TestEndErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice)

	_, err := f.manager.End(ctx, alice, room.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.manager.End(ctx, alice, "missing")
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.manager.End(ctx, admin, room.ID)
	require.NoError(t, err)

	_, err = f.manager.End(ctx, host, room.ID)
	assertCode(t, err, apperrors.CodeInvalidState)

	_, err = f.manager.Join(ctx, alice, room.ID)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.activeRoom(t)
	assertCode(t, f.manager.Cancel(ctx, host, active.ID), apperrors.CodeInvalidState)

	_, err := f.manager.End(ctx, host, active.ID)
	require.NoError(t, err)
	assertCode(t, f.manager.Cancel(ctx, host, active.ID), apperrors.CodeInvalidState)

	start := f.clock.Now().Add(time.Hour)
	scheduled, err := f.manager.Create(ctx, host, service.CreateRoomRequest{Title: "Later", ProjectID: "p1", ScheduledStartTime: &start})
	require.NoError(t, err)

	assertCode(t, f.manager.Cancel(ctx, alice, scheduled.ID), apperrors.CodePermissionDenied)
	require.NoError(t, f.manager.Cancel(ctx, host, scheduled.ID))

	_, err = f.repo.GetRoom(ctx, scheduled.ID)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
	cancelled := f.recorder.OfType(models.EventRoomCancelled)
	require.Len(t, cancelled, 1)
	assert.Equal(t, broadcast.ProjectTopic("p1"), cancelled[0].Topic)

	assertCode(t, f.manager.Cancel(ctx, host, scheduled.ID), apperrors.CodeNotFound)

	history, err := f.manager.ListHistory(ctx, admin, service.HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, history.Total, "cancelled rooms leave no history")
}

func TestKick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice, bob)

	_, err := f.manager.Kick(ctx, bob, room.ID, "alice")
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.manager.Kick(ctx, admin, room.ID, "host")
	assertCode(t, err, apperrors.CodeValidation)

	kicked, err := f.manager.Kick(ctx, host, room.ID, "alice")
	require.NoError(t, err)
	p := kicked.Participant("alice")
	assert.False(t, p.IsConnected())
	assert.True(t, p.WasKicked())
	assert.Equal(t, "host", p.Departure.Kick.By)
	assert.Equal(t, f.clock.Now(), p.Departure.Kick.At)

	notices := f.recorder.OnTopic(broadcast.UserTopic("alice"))
	require.Len(t, notices, 1)
	assert.Equal(t, models.EventParticipantKicked, notices[0].Type)
	assert.Equal(t, room.ID, notices[0].RoomID)

	roomWide := f.recorder.OfType(models.EventParticipantLeft)
	require.Len(t, roomWide, 1)
	assert.Equal(t, broadcast.RoomTopic(room.ID), roomWide[0].Topic)
	assert.Equal(t, true, roomWide[0].Event.Payload["kicked"])
	assert.Equal(t, "alice", roomWide[0].Event.Target)

	_, err = f.manager.Kick(ctx, host, room.ID, "alice")
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = f.manager.Kick(ctx, host, room.ID, "nobody")
	assertCode(t, err, apperrors.CodeNotFound)

	rejoined, err := f.manager.Join(ctx, alice, room.ID)
	require.NoError(t, err)
	assert.False(t, rejoined.Participant("alice").WasKicked(), "rejoin clears the kick")
}

func TestMuteAllRequiresModerator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice, bob)

	_, err := f.manager.MuteAll(ctx, alice, room.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.manager.UnmuteAll(ctx, alice, room.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)

	selfMuted, err := f.manager.SetMute(ctx, alice, room.ID, "alice", service.MuteRequest{Muted: true})
	require.NoError(t, err)
	assert.True(t, selfMuted.Participant("alice").IsMuted())
	assert.True(t, selfMuted.Participant("alice").CanUnmute())

	_, err = f.manager.SetMute(ctx, alice, room.ID, "bob", service.MuteRequest{Muted: true})
	assertCode(t, err, apperrors.CodePermissionDenied)

	unmuted, err := f.manager.SetMute(ctx, alice, room.ID, "alice", service.MuteRequest{Muted: false})
	require.NoError(t, err)
	assert.False(t, unmuted.Participant("alice").IsMuted())
}

func TestSetMuteByHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice)

	muted, err := f.manager.SetMute(ctx, host, room.ID, "alice", service.MuteRequest{Muted: true})
	require.NoError(t, err)
	p := muted.Participant("alice")
	assert.True(t, p.IsMuted())
	assert.True(t, p.CanUnmute(), "canUnmute defaults to true")
	assert.Equal(t, "host", p.Mute.By)

	locked := false
	_, err = f.manager.SetMute(ctx, host, room.ID, "alice", service.MuteRequest{Muted: true, CanUnmute: &locked})
	require.NoError(t, err)

	_, err = f.manager.SetMute(ctx, alice, room.ID, "alice", service.MuteRequest{Muted: false})
	assertCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.manager.SetMute(ctx, alice, room.ID, "alice", service.MuteRequest{Muted: true})
	require.NoError(t, err)
	assert.False(t, f.stored(t, room.ID).Participant("alice").CanUnmute(), "self-mute keeps the host's lock")

	unmuted, err := f.manager.SetMute(ctx, host, room.ID, "alice", service.MuteRequest{Muted: false})
	require.NoError(t, err)
	p = unmuted.Participant("alice")
	assert.False(t, p.IsMuted())
	assert.True(t, p.CanUnmute())
	assert.Nil(t, p.Mute, "provenance is cleared")

	events := f.recorder.OnTopic(broadcast.RoomTopic(room.ID))
	var types []models.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []models.EventType{
		models.EventParticipantJoined,
		models.EventParticipantMuted,
		models.EventParticipantMuted,
		models.EventParticipantUnmuted,
	}, types)
}

func TestModerationNeedsConnectedTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice)
	_, err := f.manager.Leave(ctx, alice, room.ID)
	require.NoError(t, err)

	_, err = f.manager.SetMute(ctx, host, room.ID, "alice", service.MuteRequest{Muted: true})
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.manager.SetMute(ctx, host, "missing", "alice", service.MuteRequest{Muted: true})
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestUpdateSettingsMergesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)

	on := true
	updated, err := f.manager.UpdateSettings(ctx, host, room.ID, service.SettingsUpdate{RecordSession: &on})
	require.NoError(t, err)
	assert.True(t, updated.Settings.RecordSession)
	assert.True(t, updated.Settings.AllowAllToSpeak, "untouched fields are kept")
	assert.Equal(t, models.WhiteboardHostOnly, updated.Settings.WhiteboardAccess)

	_, err = f.manager.UpdateSettings(ctx, alice, room.ID, service.SettingsUpdate{RecordSession: &on})
	assertCode(t, err, apperrors.CodePermissionDenied)

	events := f.recorder.OfType(models.EventSettingsUpdated)
	require.Len(t, events, 1)
}

func TestUpdateWhiteboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)
	f.join(t, room.ID, alice, bob)

	specific, err := f.manager.UpdateWhiteboard(ctx, host, room.ID, service.WhiteboardUpdate{
		Access:       models.WhiteboardSpecific,
		AllowedUsers: []string{"alice", "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, specific.Settings.WhiteboardAllowedUsers)
	assert.True(t, specific.CanWriteWhiteboard("alice"))
	assert.False(t, specific.CanWriteWhiteboard("bob"))
	assert.True(t, specific.CanWriteWhiteboard("host"))

	all, err := f.manager.UpdateWhiteboard(ctx, admin, room.ID, service.WhiteboardUpdate{
		Access:       models.WhiteboardAll,
		AllowedUsers: []string{"alice"},
	})
	require.NoError(t, err)
	assert.Empty(t, all.Settings.WhiteboardAllowedUsers, "non-specific modes clear the list")
	assert.True(t, all.CanWriteWhiteboard("bob"))

	_, err = f.manager.UpdateWhiteboard(ctx, host, room.ID, service.WhiteboardUpdate{Access: "everyone"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.manager.UpdateWhiteboard(ctx, bob, room.ID, service.WhiteboardUpdate{Access: models.WhiteboardDisabled})
	assertCode(t, err, apperrors.CodePermissionDenied)

	assert.Len(t, f.recorder.OfType(models.EventWhiteboardUpdated), 2)
}

func TestQueriesAreScopedToProjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p1Room := f.activeRoom(t)
	p2Room, err := f.manager.Create(ctx, bob, service.CreateRoomRequest{Title: "Bob's", ProjectID: "p2"})
	require.NoError(t, err)
	start := f.clock.Now().Add(time.Hour)
	_, err = f.manager.Create(ctx, host, service.CreateRoomRequest{Title: "Later", ProjectID: "p1", ScheduledStartTime: &start})
	require.NoError(t, err)

	active, err := f.manager.ListActive(ctx, alice)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, p1Room.ID, active[0].ID)

	active, err = f.manager.ListActive(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	active, err = f.manager.ListActive(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, active)

	active, err = f.manager.ListActive(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	scheduled, err := f.manager.ListScheduled(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, scheduled, 1)

	_, err = f.manager.GetRoom(ctx, alice, p2Room.ID)
	assertCode(t, err, apperrors.CodePermissionDenied)
	got, err := f.manager.GetRoom(ctx, bob, p2Room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob's", got.Title)
}

func TestListHistoryPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		room := f.activeRoom(t)
		f.clock.Advance(time.Minute)
		_, err := f.manager.End(ctx, host, room.ID)
		require.NoError(t, err)
		ids = append(ids, room.ID)
	}

	page, err := f.manager.ListHistory(ctx, alice, service.HistoryQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Rooms, 2)
	assert.Equal(t, ids[4], page.Rooms[0].ID)
	assert.Equal(t, ids[3], page.Rooms[1].ID)

	page, err = f.manager.ListHistory(ctx, alice, service.HistoryQuery{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Rooms, 1)
	assert.Equal(t, ids[0], page.Rooms[0].ID)

	page, err = f.manager.ListHistory(ctx, alice, service.HistoryQuery{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Rooms)

	page, err = f.manager.ListHistory(ctx, alice, service.HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)

	_, err = f.manager.ListHistory(ctx, alice, service.HistoryQuery{Page: 1, Limit: 101})
	assertCode(t, err, apperrors.CodeValidation)
	_, err = f.manager.ListHistory(ctx, alice, service.HistoryQuery{Page: -1, Limit: 10})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestBroadcastFailureKeepsCommittedState(t *testing.T) {
	f := newFixture(t)
	room := f.activeRoom(t)
	f.recorder.Err = errors.New("transport down")

	joined, err := f.manager.Join(context.Background(), alice, room.ID)
	require.NoError(t, err)
	assert.True(t, joined.Participant("alice").IsConnected())
	assert.True(t, f.stored(t, room.ID).Participant("alice").IsConnected())
}

// failingStore rejects every update
type failingStore struct {
	*memory.Repository
}

func (s failingStore) UpdateRoom(ctx context.Context, id string, fn repository.MutateFunc) (*models.MeetingRoom, error) {
	return nil, errors.New("disk full")
}

func TestStoreFailureRejectsOperation(t *testing.T) {
	f := newFixtureWithStore(t, func(repo *memory.Repository) repository.RoomStore {
		return failingStore{repo}
	})
	room := f.activeRoom(t)

	_, err := f.manager.Join(context.Background(), alice, room.ID)
	assertCode(t, err, apperrors.CodeInternal)
	assert.Nil(t, f.stored(t, room.ID).Participant("alice"))
	assert.Empty(t, f.recorder.OfType(models.EventParticipantJoined))
}

func TestConcurrentJoinsAndMuteAllStayConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)

	const joiners = 20
	var users []models.Identity
	for i := 0; i < joiners; i++ {
		user := models.Identity{UserID: fmt.Sprintf("user-%02d", i), Role: models.RoleMember}
		require.NoError(t, f.repo.SetProjectMember(ctx, "p1", user.UserID, models.ProjectRoleMember))
		users = append(users, user)
	}

	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(2)
		go func(user models.Identity) {
			defer wg.Done()
			_, err := f.manager.Join(ctx, user, room.ID)
			assert.NoError(t, err)
		}(user)
		go func(user models.Identity) {
			defer wg.Done()
			_, err := f.manager.Join(ctx, user, room.ID)
			assert.NoError(t, err)
		}(user)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.manager.MuteAll(ctx, host, room.ID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	stored := f.stored(t, room.ID)
	assert.Len(t, stored.Participants, joiners+1, "one record per user")
	for _, p := range stored.Participants {
		if p.UserID == "host" {
			assert.False(t, p.IsMuted())
			continue
		}
		assert.True(t, p.IsConnected(), p.UserID)
		assert.True(t, p.IsMuted(), "joined before mute-all or inherited it: %s", p.UserID)
		assert.False(t, p.CanUnmute(), p.UserID)
	}
	assert.Len(t, f.recorder.OfType(models.EventParticipantJoined), joiners, "one joined event per user")
}

func TestRoomEventsFollowCommitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.activeRoom(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = f.manager.MuteAll(ctx, host, room.ID)
			} else {
				_, _ = f.manager.UnmuteAll(ctx, host, room.ID)
			}
		}(i)
	}
	wg.Wait()

	events := f.recorder.OnTopic(broadcast.RoomTopic(room.ID))
	require.Len(t, events, 10)
	last := events[len(events)-1]
	stored := f.stored(t, room.ID)
	if last.Type == models.EventParticipantsMuted {
		assert.True(t, stored.Settings.MuteAllMembers)
	} else {
		assert.False(t, stored.Settings.MuteAllMembers)
	}
}
