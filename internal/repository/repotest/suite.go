// Package repotest holds the behaviour every repository backend must share
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/navikt/meetrooms/internal/models"
	"github.com/navikt/meetrooms/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRoom returns an active room with its host connected
func NewRoom(id, projectID string, createdAt time.Time) *models.MeetingRoom {
	started := createdAt
	return &models.MeetingRoom{
		ID:        id,
		Title:     "Room " + id,
		ProjectID: projectID,
		HostID:    "host",
		CreatedBy: "host",
		CreatedAt: createdAt,
		Status:    models.RoomStatusActive,
		StartedAt: &started,
		Settings:  models.DefaultRoomSettings(),
		Participants: []*models.Participant{
			{UserID: "host", JoinedAt: createdAt},
		},
	}
}

// Run exercises repo against the shared repository contract
func Run(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	now := time.Date(2025, 5, 8, 15, 0, 0, 0, time.UTC)

	t.Run("CreateAndGetRoom", func(t *testing.T) {
		room := NewRoom("r1", "p1", now)
		room.Participants = append(room.Participants, &models.Participant{
			UserID:    "u1",
			JoinedAt:  now,
			Departure: &models.Departure{At: now.Add(time.Minute), Kick: &models.Kick{By: "host", At: now.Add(time.Minute)}},
			Mute:      &models.Mute{By: "host", At: now, CanUnmute: false},
		})
		require.NoError(t, repo.CreateRoom(ctx, room))

		got, err := repo.GetRoom(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "p1", got.ProjectID)
		assert.Equal(t, models.RoomStatusActive, got.Status)
		require.Len(t, got.Participants, 2)
		assert.True(t, got.Participants[0].IsConnected())
		kicked := got.Participants[1]
		assert.False(t, kicked.IsConnected())
		assert.True(t, kicked.WasKicked())
		assert.Equal(t, "host", kicked.Departure.Kick.By)
		assert.True(t, kicked.IsMuted())
		assert.False(t, kicked.CanUnmute())
	})

	t.Run("CreateRoomRejectsDuplicateID", func(t *testing.T) {
		err := repo.CreateRoom(ctx, NewRoom("r1", "p1", now))
		assert.ErrorIs(t, err, models.ErrRoomExists)
	})

	t.Run("GetMissingRoom", func(t *testing.T) {
		_, err := repo.GetRoom(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrRoomNotFound)
	})

	t.Run("UpdateRoomPersistsMutation", func(t *testing.T) {
		updated, err := repo.UpdateRoom(ctx, "r1", func(room *models.MeetingRoom) error {
			room.Title = "Renamed"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Title)

		got, err := repo.GetRoom(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
	})

	t.Run("UpdateRoomErrorLeavesRecordUntouched", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := repo.UpdateRoom(ctx, "r1", func(room *models.MeetingRoom) error {
			room.Title = "Should not stick"
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.GetRoom(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
	})

	t.Run("UpdateMissingRoom", func(t *testing.T) {
		_, err := repo.UpdateRoom(ctx, "missing", func(room *models.MeetingRoom) error { return nil })
		assert.ErrorIs(t, err, models.ErrRoomNotFound)
	})

	t.Run("ConcurrentUpdatesAreSerialized", func(t *testing.T) {
		require.NoError(t, repo.CreateRoom(ctx, NewRoom("counter", "p1", now.Add(time.Second))))

		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.UpdateRoom(ctx, "counter", func(room *models.MeetingRoom) error {
					room.DurationMinutes++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repo.GetRoom(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, writers, got.DurationMinutes)
	})

	t.Run("ListRoomsFiltersByStatusAndProject", func(t *testing.T) {
		scheduled := NewRoom("r2", "p2", now.Add(2*time.Second))
		scheduled.Status = models.RoomStatusScheduled
		scheduled.StartedAt = nil
		scheduled.Participants = nil
		require.NoError(t, repo.CreateRoom(ctx, scheduled))

		all, err := repo.ListRooms(ctx, models.RoomFilter{AllProjects: true})
		require.NoError(t, err)
		assert.Len(t, all, 3)
		assert.Equal(t, "r1", all[0].ID, "rooms are ordered by creation time")

		active, err := repo.ListRooms(ctx, models.RoomFilter{
			Statuses:    []models.RoomStatus{models.RoomStatusActive},
			AllProjects: true,
		})
		require.NoError(t, err)
		assert.Len(t, active, 2)

		p2, err := repo.ListRooms(ctx, models.RoomFilter{ProjectIDs: []string{"p2"}})
		require.NoError(t, err)
		require.Len(t, p2, 1)
		assert.Equal(t, "r2", p2[0].ID)

		none, err := repo.ListRooms(ctx, models.RoomFilter{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("DeleteRoomHonoursPrecondition", func(t *testing.T) {
		refused := errors.New("not scheduled")
		_, err := repo.DeleteRoom(ctx, "r1", func(room *models.MeetingRoom) error {
			if room.Status != models.RoomStatusScheduled {
				return refused
			}
			return nil
		})
		assert.ErrorIs(t, err, refused)
		_, err = repo.GetRoom(ctx, "r1")
		assert.NoError(t, err)

		deleted, err := repo.DeleteRoom(ctx, "r2", func(room *models.MeetingRoom) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, "r2", deleted.ID)

		_, err = repo.GetRoom(ctx, "r2")
		assert.ErrorIs(t, err, models.ErrRoomNotFound)

		_, err = repo.DeleteRoom(ctx, "r2", func(room *models.MeetingRoom) error { return nil })
		assert.ErrorIs(t, err, models.ErrRoomNotFound)
	})

	t.Run("ProjectDirectory", func(t *testing.T) {
		require.NoError(t, repo.SetProjectMember(ctx, "p1", "alice", models.ProjectRoleManager))
		require.NoError(t, repo.SetProjectMember(ctx, "p2", "alice", models.ProjectRoleMember))
		require.NoError(t, repo.SetProjectMember(ctx, "p1", "bob", models.ProjectRoleMember))

		role, ok, err := repo.ProjectRole(ctx, "p1", "alice")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, models.ProjectRoleManager, role)

		_, ok, err = repo.ProjectRole(ctx, "p2", "bob")
		require.NoError(t, err)
		assert.False(t, ok)

		projects, err := repo.ProjectsFor(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2"}, projects)

		require.NoError(t, repo.RemoveProjectMember(ctx, "p2", "alice"))
		projects, err = repo.ProjectsFor(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, projects)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}
