package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/navikt/meetrooms/internal/auth"
	apperrors "github.com/navikt/meetrooms/internal/errors"
	"github.com/navikt/meetrooms/internal/models"
	"github.com/navikt/meetrooms/internal/service"
)

// RoomHandler handles HTTP requests for room management
type RoomHandler struct {
	rooms RoomManager
	log   *slog.Logger
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(rooms RoomManager, log *slog.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, log: log}
}

// SettingsResponse echoes a room's settings after an update
type SettingsResponse struct {
	RoomID   string              `json:"roomId"`
	Settings models.RoomSettings `json:"settings"`
}

// ServeHTTP routes requests under /api/rooms
func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Path format: /api/rooms[/{roomID}[/{action}|/participants/{userID}/{action}]]
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/rooms"), "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.createRoom(w, r, identity)
	case len(parts) == 1 && r.Method == http.MethodGet && parts[0] == "active":
		h.listActive(w, r, identity)
	case len(parts) == 1 && r.Method == http.MethodGet && parts[0] == "scheduled":
		h.listScheduled(w, r, identity)
	case len(parts) == 1 && r.Method == http.MethodGet && parts[0] == "history":
		h.listHistory(w, r, identity)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.respond(w, r)(h.rooms.GetRoom(r.Context(), identity, parts[0]))
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.cancelRoom(w, r, identity, parts[0])
	case len(parts) == 2 && r.Method == http.MethodPost:
		h.roomAction(w, r, identity, parts[0], parts[1])
	case len(parts) == 2 && r.Method == http.MethodPatch:
		h.updateRoom(w, r, identity, parts[0], parts[1])
	case len(parts) == 4 && r.Method == http.MethodPost && parts[1] == "participants":
		h.participantAction(w, r, identity, parts[0], parts[2], parts[3])
	default:
		http.NotFound(w, r)
	}
}

// respond writes the room or the error returned by a manager call
func (h *RoomHandler) respond(w http.ResponseWriter, r *http.Request) func(*models.MeetingRoom, error) {
	return func(room *models.MeetingRoom, err error) {
		if err != nil {
			writeError(w, h.log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

// createRoom handles POST /api/rooms
func (h *RoomHandler) createRoom(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	var req service.CreateRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	room, err := h.rooms.Create(r.Context(), identity, req)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// listActive handles GET /api/rooms/active
func (h *RoomHandler) listActive(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	rooms, err := h.rooms.ListActive(r.Context(), identity)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// listScheduled handles GET /api/rooms/scheduled
func (h *RoomHandler) listScheduled(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	rooms, err := h.rooms.ListScheduled(r.Context(), identity)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// listHistory handles GET /api/rooms/history?page=&limit=
func (h *RoomHandler) listHistory(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	var query service.HistoryQuery
	var err error
	if query.Page, err = intParam(r, "page"); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if query.Limit, err = intParam(r, "limit"); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	page, err := h.rooms.ListHistory(r.Context(), identity, query)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// cancelRoom handles DELETE /api/rooms/{roomID}
func (h *RoomHandler) cancelRoom(w http.ResponseWriter, r *http.Request, identity models.Identity, roomID string) {
	if err := h.rooms.Cancel(r.Context(), identity, roomID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// roomAction handles POST /api/rooms/{roomID}/{action}
func (h *RoomHandler) roomAction(w http.ResponseWriter, r *http.Request, identity models.Identity, roomID, action string) {
	ctx := r.Context()
	switch action {
	case "join":
		h.respond(w, r)(h.rooms.Join(ctx, identity, roomID))
	case "leave":
		h.respond(w, r)(h.rooms.Leave(ctx, identity, roomID))
	case "end":
		h.respond(w, r)(h.rooms.End(ctx, identity, roomID))
	case "mute-all":
		h.respond(w, r)(h.rooms.MuteAll(ctx, identity, roomID))
	case "unmute-all":
		h.respond(w, r)(h.rooms.UnmuteAll(ctx, identity, roomID))
	default:
		http.NotFound(w, r)
	}
}

// updateRoom handles PATCH /api/rooms/{roomID}/settings and /whiteboard
func (h *RoomHandler) updateRoom(w http.ResponseWriter, r *http.Request, identity models.Identity, roomID, target string) {
	var (
		room *models.MeetingRoom
		err  error
	)
	switch target {
	case "settings":
		var update service.SettingsUpdate
		if err = decodeBody(r, &update); err == nil {
			room, err = h.rooms.UpdateSettings(r.Context(), identity, roomID, update)
		}
	case "whiteboard":
		var update service.WhiteboardUpdate
		if err = decodeBody(r, &update); err == nil {
			room, err = h.rooms.UpdateWhiteboard(r.Context(), identity, roomID, update)
		}
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{RoomID: room.ID, Settings: room.Settings})
}

// participantAction handles POST /api/rooms/{roomID}/participants/{userID}/{action}
func (h *RoomHandler) participantAction(w http.ResponseWriter, r *http.Request, identity models.Identity, roomID, userID, action string) {
	switch action {
	case "mute":
		var req service.MuteRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, h.log, r, err)
			return
		}
		h.respond(w, r)(h.rooms.SetMute(r.Context(), identity, roomID, userID, req))
	case "kick":
		h.respond(w, r)(h.rooms.Kick(r.Context(), identity, roomID, userID))
	default:
		http.NotFound(w, r)
	}
}

// intParam reads an optional integer query parameter, returning 0 when absent
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation("%s must be an integer", name)
	}
	return v, nil
}
