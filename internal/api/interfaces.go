package api

import (
	"context"

	"github.com/navikt/meetrooms/internal/models"
	"github.com/navikt/meetrooms/internal/service"
)

// RoomManager defines the room operations needed by the API handlers
type RoomManager interface {
	Create(ctx context.Context, identity models.Identity, req service.CreateRoomRequest) (*models.MeetingRoom, error)
	GetRoom(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error)
	Join(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error)
	Leave(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error)
	End(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error)
	Cancel(ctx context.Context, identity models.Identity, roomID string) error

	// Moderation
	SetMute(ctx context.Context, identity models.Identity, roomID, targetID string, req service.MuteRequest) (*models.MeetingRoom, error)
	MuteAll(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error)
	UnmuteAll(ctx context.Context, identity models.Identity, roomID string) (*models.MeetingRoom, error)
	Kick(ctx context.Context, identity models.Identity, roomID, targetID string) (*models.MeetingRoom, error)
	UpdateSettings(ctx context.Context, identity models.Identity, roomID string, update service.SettingsUpdate) (*models.MeetingRoom, error)
	UpdateWhiteboard(ctx context.Context, identity models.Identity, roomID string, update service.WhiteboardUpdate) (*models.MeetingRoom, error)

	// Queries
	ListActive(ctx context.Context, identity models.Identity) ([]*models.MeetingRoom, error)
	ListScheduled(ctx context.Context, identity models.Identity) ([]*models.MeetingRoom, error)
	ListHistory(ctx context.Context, identity models.Identity, query service.HistoryQuery) (*service.HistoryPage, error)
}

// PromotionRunner triggers a scheduler pass on demand
type PromotionRunner interface {
	RunOnce(ctx context.Context) ([]string, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}
