// Package memory provides an in-memory implementation of the repository interface
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/navikt/meetrooms/internal/models"
)

// Repository implements the repository interface with in-memory storage.
// Every read returns a deep copy so callers never share state with the store.
type Repository struct {
	rooms    map[string]*models.MeetingRoom
	projects map[string]map[string]models.ProjectRole // project -> user -> role
	mu       sync.RWMutex
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{
		rooms:    make(map[string]*models.MeetingRoom),
		projects: make(map[string]map[string]models.ProjectRole),
	}
}

// Close is a no-op for the in-memory store
func (r *Repository) Close() error {
	return nil
}

// Ping always succeeds for the in-memory store
func (r *Repository) Ping(ctx context.Context) error {
	return nil
}

// CreateRoom stores a new room
func (r *Repository) CreateRoom(ctx context.Context, room *models.MeetingRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.ID]; exists {
		return models.ErrRoomExists
	}
	r.rooms[room.ID] = room.Clone()
	return nil
}

// GetRoom retrieves a room by ID
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.MeetingRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	return room.Clone(), nil
}

// UpdateRoom applies fn to a copy of the room and stores it only if fn succeeds
func (r *Repository) UpdateRoom(ctx context.Context, id string, fn func(*models.MeetingRoom) error) (*models.MeetingRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rooms[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	r.rooms[id] = next
	return next.Clone(), nil
}

// DeleteRoom removes the room if fn accepts the current record
func (r *Repository) DeleteRoom(ctx context.Context, id string, fn func(*models.MeetingRoom) error) (*models.MeetingRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rooms[id]
	if !ok {
		return nil, models.ErrRoomNotFound
	}

	deleted := current.Clone()
	if err := fn(deleted); err != nil {
		return nil, err
	}
	delete(r.rooms, id)
	return deleted, nil
}

// ListRooms returns the rooms matching filter ordered by creation time
func (r *Repository) ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.MeetingRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*models.MeetingRoom, 0, len(r.rooms))
	for _, room := range r.rooms {
		if filter.Matches(room) {
			rooms = append(rooms, room.Clone())
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// ProjectRole returns the user's role in a project
func (r *Repository) ProjectRole(ctx context.Context, projectID, userID string) (models.ProjectRole, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.projects[projectID][userID]
	return role, ok, nil
}

// ProjectsFor lists the projects a user belongs to
func (r *Repository) ProjectsFor(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projectIDs := lo.Keys(lo.PickBy(r.projects, func(_ string, members map[string]models.ProjectRole) bool {
		_, ok := members[userID]
		return ok
	}))
	sort.Strings(projectIDs)
	return projectIDs, nil
}

// SetProjectMember adds a user to a project or changes their role
func (r *Repository) SetProjectMember(ctx context.Context, projectID, userID string, role models.ProjectRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.projects[projectID]
	if !ok {
		members = make(map[string]models.ProjectRole)
		r.projects[projectID] = members
	}
	members[userID] = role
	return nil
}

// RemoveProjectMember removes a user from a project
func (r *Repository) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.projects[projectID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.projects, projectID)
		}
	}
	return nil
}
