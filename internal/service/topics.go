package service

import (
	"context"

	"github.com/navikt/meetrooms/internal/broadcast"
	apperrors "github.com/navikt/meetrooms/internal/errors"
	"github.com/navikt/meetrooms/internal/models"
	"github.com/navikt/meetrooms/internal/repository"
)

// TopicAuthorizer decides who may subscribe to a broadcast topic. Users only
// hear their own targeted notices; room and project topics are limited to
// project members. Admins may subscribe to anything.
type TopicAuthorizer struct {
	store     repository.RoomStore
	directory repository.ProjectDirectory
}

// NewTopicAuthorizer creates a topic authorizer
func NewTopicAuthorizer(store repository.RoomStore, directory repository.ProjectDirectory) *TopicAuthorizer {
	return &TopicAuthorizer{store: store, directory: directory}
}

// AuthorizeTopic implements broadcast.TopicAuthorizer
func (a *TopicAuthorizer) AuthorizeTopic(ctx context.Context, identity models.Identity, kind broadcast.TopicKind, id string) error {
	if identity.IsAdmin() {
		return nil
	}
	switch kind {
	case broadcast.KindUser:
		if id != identity.UserID {
			return apperrors.PermissionDenied("cannot subscribe to another user's notices")
		}
		return nil
	case broadcast.KindProject:
		return requireMember(ctx, a.directory, identity, id)
	case broadcast.KindRoom:
		room, err := a.store.GetRoom(ctx, id)
		if err != nil {
			return storeError(err, id)
		}
		return requireMember(ctx, a.directory, identity, room.ProjectID)
	default:
		return apperrors.Validation("unknown topic kind %q", kind)
	}
}
