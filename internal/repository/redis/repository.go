// Package redis provides a Redis/Valkey implementation of the repository interface
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/navikt/meetrooms/internal/config"
	"github.com/navikt/meetrooms/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrTooMuchContention is returned when an optimistic transaction keeps
// losing to concurrent writers
var ErrTooMuchContention = errors.New("too much contention on room")

// Repository implements the repository interface with Redis storage
type Repository struct {
	client     *redis.Client
	keyPrefix  string
	endedTTL   time.Duration
	maxRetries int
}

// NewRepository creates a new Redis repository
func NewRepository(cfg config.RedisConfig) (*Repository, error) {
	var client *redis.Client

	// Use URI if provided, otherwise build connection from individual parameters
	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}

		// Use DB from config if not specified in the URI
		if opt.DB == 0 {
			opt.DB = cfg.DB
		}

		// Use password from config if not in URI
		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}

		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Address(),
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	maxRetries := cfg.MaxTxRetries
	if maxRetries <= 0 {
		maxRetries = 10
	}

	return &Repository{
		client:     client,
		keyPrefix:  cfg.KeyPrefix,
		endedTTL:   cfg.EndedRoomTTL,
		maxRetries: maxRetries,
	}, nil
}

// Close closes the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// Ping checks the Redis connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// roomKey returns the Redis key for a room
func (r *Repository) roomKey(id string) string {
	return fmt.Sprintf("%srooms:%s", r.keyPrefix, id)
}

// projectMembersKey returns the hash of user -> role for a project
func (r *Repository) projectMembersKey(projectID string) string {
	return fmt.Sprintf("%sprojects:%s:members", r.keyPrefix, projectID)
}

// userProjectsKey returns the set of projects a user belongs to
func (r *Repository) userProjectsKey(userID string) string {
	return fmt.Sprintf("%susers:%s:projects", r.keyPrefix, userID)
}

// ttlFor keeps active rooms forever and lets ended rooms expire if configured
func (r *Repository) ttlFor(room *models.MeetingRoom) time.Duration {
	if room.Status == models.RoomStatusEnded {
		return r.endedTTL
	}
	return 0
}

// CreateRoom stores a new room, refusing to overwrite an existing id
func (r *Repository) CreateRoom(ctx context.Context, room *models.MeetingRoom) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.roomKey(room.ID), data, r.ttlFor(room)).Result()
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	if !ok {
		return models.ErrRoomExists
	}
	return nil
}

// GetRoom retrieves a room by ID
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.MeetingRoom, error) {
	data, err := r.client.Get(ctx, r.roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return decodeRoom(data)
}

// UpdateRoom runs fn inside a WATCH/MULTI transaction, retrying when another
// writer changed the key between the read and the commit
func (r *Repository) UpdateRoom(ctx context.Context, id string, fn func(*models.MeetingRoom) error) (*models.MeetingRoom, error) {
	key := r.roomKey(id)
	var updated *models.MeetingRoom

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return models.ErrRoomNotFound
			}
			return fmt.Errorf("failed to get room: %w", err)
		}
		room, err := decodeRoom(data)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}
		next, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("failed to marshal room: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, r.ttlFor(room))
			return nil
		})
		if err == nil {
			updated = room
		}
		return err
	}

	if err := r.watch(ctx, key, txf); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRoom removes the room inside a WATCH/MULTI transaction once fn accepts it
func (r *Repository) DeleteRoom(ctx context.Context, id string, fn func(*models.MeetingRoom) error) (*models.MeetingRoom, error) {
	key := r.roomKey(id)
	var deleted *models.MeetingRoom

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return models.ErrRoomNotFound
			}
			return fmt.Errorf("failed to get room: %w", err)
		}
		room, err := decodeRoom(data)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			deleted = room
		}
		return err
	}

	if err := r.watch(ctx, key, txf); err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *Repository) watch(ctx context.Context, key string, txf func(tx *redis.Tx) error) error {
	for i := 0; i < r.maxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTooMuchContention
}

// ListRooms returns the rooms matching filter ordered by creation time
func (r *Repository) ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.MeetingRoom, error) {
	// Get all room keys
	pattern := r.roomKey("*")
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	if len(keys) == 0 {
		return []*models.MeetingRoom{}, nil
	}

	// Use MGET to retrieve all room data in a single roundtrip
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room data: %w", err)
	}

	rooms := make([]*models.MeetingRoom, 0, len(values))
	for _, v := range values {
		// Expired or deleted between KEYS and MGET
		if v == nil {
			continue
		}

		strData, ok := v.(string)
		if !ok {
			continue
		}

		room, err := decodeRoom([]byte(strData))
		if err != nil {
			continue
		}

		if filter.Matches(room) {
			rooms = append(rooms, room)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// ProjectRole returns the user's role in a project
func (r *Repository) ProjectRole(ctx context.Context, projectID, userID string) (models.ProjectRole, bool, error) {
	role, err := r.client.HGet(ctx, r.projectMembersKey(projectID), userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get project role: %w", err)
	}
	return models.ProjectRole(role), true, nil
}

// ProjectsFor lists the projects a user belongs to
func (r *Repository) ProjectsFor(ctx context.Context, userID string) ([]string, error) {
	projectIDs, err := r.client.SMembers(ctx, r.userProjectsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	sort.Strings(projectIDs)
	return projectIDs, nil
}

// SetProjectMember adds a user to a project or changes their role
func (r *Repository) SetProjectMember(ctx context.Context, projectID, userID string, role models.ProjectRole) error {
	// Use a transaction so the forward and reverse index never disagree
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.projectMembersKey(projectID), userID, string(role))
		pipe.SAdd(ctx, r.userProjectsKey(userID), projectID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set project member: %w", err)
	}
	return nil
}

// RemoveProjectMember removes a user from a project
func (r *Repository) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.projectMembersKey(projectID), userID)
		pipe.SRem(ctx, r.userProjectsKey(userID), projectID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}
	return nil
}

func decodeRoom(data []byte) (*models.MeetingRoom, error) {
	var room models.MeetingRoom
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}
