// Package repository defines interfaces for data storage
package repository

import (
	"context"

	"github.com/navikt/meetrooms/internal/models"
)

// MutateFunc changes a room in place. Returning an error aborts the write
// and leaves the stored record untouched.
type MutateFunc = func(room *models.MeetingRoom) error

// RoomStore is the durable repository of meeting rooms
type RoomStore interface {
	// CreateRoom stores a new room, failing with models.ErrRoomExists on id clash
	CreateRoom(ctx context.Context, room *models.MeetingRoom) error
	GetRoom(ctx context.Context, id string) (*models.MeetingRoom, error)
	// UpdateRoom atomically reads, mutates and writes one room
	UpdateRoom(ctx context.Context, id string, fn MutateFunc) (*models.MeetingRoom, error)
	// DeleteRoom atomically checks fn against the current record and removes it
	DeleteRoom(ctx context.Context, id string, fn MutateFunc) (*models.MeetingRoom, error)
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.MeetingRoom, error)
	Ping(ctx context.Context) error
}

// ProjectDirectory answers project membership questions
type ProjectDirectory interface {
	// ProjectRole returns the user's role in the project and false if not a member
	ProjectRole(ctx context.Context, projectID, userID string) (models.ProjectRole, bool, error)
	ProjectsFor(ctx context.Context, userID string) ([]string, error)
	SetProjectMember(ctx context.Context, projectID, userID string, role models.ProjectRole) error
	RemoveProjectMember(ctx context.Context, projectID, userID string) error
}

// Repository is implemented by every storage backend
type Repository interface {
	RoomStore
	ProjectDirectory
	Close() error
}
