package api

import (
	"log/slog"
	"net/http"

	"github.com/navikt/meetrooms/internal/auth"
	"github.com/navikt/meetrooms/internal/repository"
)

// Dependencies are the collaborators the HTTP layer is wired to
type Dependencies struct {
	Rooms     RoomManager
	Scheduler PromotionRunner
	Directory repository.ProjectDirectory
	Store     Pinger
	Events    http.Handler
	Auth      *auth.Middleware
	Log       *slog.Logger
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(deps Dependencies) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoints for Kubernetes
	health := NewHealthHandler(deps.Store, deps.Log)
	mux.HandleFunc("/health/live", health.Live)
	mux.HandleFunc("/health/ready", health.Ready)

	// Room management endpoints
	roomHandler := deps.Auth.RequireAuth(NewRoomHandler(deps.Rooms, deps.Log))
	mux.Handle("/api/rooms", roomHandler)
	mux.Handle("/api/rooms/", roomHandler)

	// Operator endpoints
	mux.Handle("/api/admin/", deps.Auth.RequireAuth(NewAdminHandler(deps.Scheduler, deps.Directory, deps.Log)))

	// Server-sent events, one stream per topic
	mux.Handle("/events", deps.Auth.RequireAuth(deps.Events))

	return mux
}
