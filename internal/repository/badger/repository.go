// Package badger provides an embedded BadgerDB implementation of the repository interface
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/navikt/meetrooms/internal/config"
	"github.com/navikt/meetrooms/internal/models"
)

const (
	roomPrefix    = "room:"
	projectPrefix = "project:" // project:{projectID}:{userID} -> role
	memberPrefix  = "member:"  // member:{userID}:{projectID} -> role

	maxConflictRetries = 10
)

// Repository implements the repository interface on top of BadgerDB.
// Read-modify-write runs inside a single transaction; Badger detects
// write conflicts at commit and the operation is retried.
type Repository struct {
	db *badger.DB
}

// NewRepository opens the Badger database described by cfg
func NewRepository(cfg config.BadgerConfig) (*Repository, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLoggingLevel(badger.WARNING)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepositoryFromDB wraps an already opened database
func NewRepositoryFromDB(db *badger.DB) *Repository {
	return &Repository{db: db}
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is open and readable
func (r *Repository) Ping(ctx context.Context) error {
	if r.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return r.db.View(func(txn *badger.Txn) error { return nil })
}

func roomKey(id string) []byte {
	return []byte(roomPrefix + id)
}

// CreateRoom stores a new room, refusing to overwrite an existing id
func (r *Repository) CreateRoom(ctx context.Context, room *models.MeetingRoom) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	return r.update(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(room.ID))
		if err == nil {
			return models.ErrRoomExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(roomKey(room.ID), data)
	})
}

// GetRoom retrieves a room by ID
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.MeetingRoom, error) {
	var room *models.MeetingRoom
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// UpdateRoom applies fn to the stored room inside one transaction
func (r *Repository) UpdateRoom(ctx context.Context, id string, fn func(*models.MeetingRoom) error) (*models.MeetingRoom, error) {
	var updated *models.MeetingRoom
	err := r.update(func(txn *badger.Txn) error {
		room, err := getRoom(txn, id)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}
		data, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("failed to marshal room: %w", err)
		}
		if err := txn.Set(roomKey(id), data); err != nil {
			return err
		}
		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRoom removes the room inside one transaction once fn accepts it
func (r *Repository) DeleteRoom(ctx context.Context, id string, fn func(*models.MeetingRoom) error) (*models.MeetingRoom, error) {
	var deleted *models.MeetingRoom
	err := r.update(func(txn *badger.Txn) error {
		room, err := getRoom(txn, id)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}
		if err := txn.Delete(roomKey(id)); err != nil {
			return err
		}
		deleted = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListRooms returns the rooms matching filter ordered by creation time
func (r *Repository) ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.MeetingRoom, error) {
	rooms := make([]*models.MeetingRoom, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room models.MeetingRoom
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &room)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal room: %w", err)
			}
			if filter.Matches(&room) {
				rooms = append(rooms, &room)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// ProjectRole returns the user's role in a project
func (r *Repository) ProjectRole(ctx context.Context, projectID, userID string) (models.ProjectRole, bool, error) {
	var role models.ProjectRole
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(projectPrefix + projectID + ":" + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		role = models.ProjectRole(value)
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get project role: %w", err)
	}
	return role, found, nil
}

// ProjectsFor lists the projects a user belongs to
func (r *Repository) ProjectsFor(ctx context.Context, userID string) ([]string, error) {
	var projectIDs []string
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(memberPrefix + userID + ":")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			projectIDs = append(projectIDs, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	sort.Strings(projectIDs)
	return projectIDs, nil
}

// SetProjectMember adds a user to a project or changes their role
func (r *Repository) SetProjectMember(ctx context.Context, projectID, userID string, role models.ProjectRole) error {
	return r.update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(projectPrefix+projectID+":"+userID), []byte(role)); err != nil {
			return err
		}
		return txn.Set([]byte(memberPrefix+userID+":"+projectID), []byte(role))
	})
}

// RemoveProjectMember removes a user from a project
func (r *Repository) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	return r.update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(projectPrefix + projectID + ":" + userID)); err != nil {
			return err
		}
		return txn.Delete([]byte(memberPrefix + userID + ":" + projectID))
	})
}

// update retries fn when a concurrent transaction committed a conflicting write
func (r *Repository) update(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := r.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("room update: %w", badger.ErrConflict)
}

func getRoom(txn *badger.Txn, id string) (*models.MeetingRoom, error) {
	item, err := txn.Get(roomKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, models.ErrRoomNotFound
		}
		return nil, err
	}
	var room models.MeetingRoom
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &room)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}
