package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/navikt/meetrooms/internal/auth"
	apperrors "github.com/navikt/meetrooms/internal/errors"
	"github.com/navikt/meetrooms/internal/models"
	"github.com/navikt/meetrooms/internal/repository"
	"github.com/navikt/meetrooms/internal/service"
	"github.com/navikt/meetrooms/internal/utils"
)

// AdminHandler serves operator endpoints. Every route requires the admin role.
type AdminHandler struct {
	scheduler PromotionRunner
	directory repository.ProjectDirectory
	validate  *validator.Validate
	log       *slog.Logger
}

// MemberRequest sets a user's role in a project
type MemberRequest struct {
	Role models.ProjectRole `json:"role" validate:"required,oneof=member manager"`
}

// PromotionResponse lists the rooms activated by a manual scheduler pass
type PromotionResponse struct {
	Promoted []string `json:"promoted"`
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(scheduler PromotionRunner, directory repository.ProjectDirectory, log *slog.Logger) *AdminHandler {
	return &AdminHandler{
		scheduler: scheduler,
		directory: directory,
		validate:  validator.New(),
		log:       log,
	}
}

// ServeHTTP routes requests under /api/admin
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !identity.IsAdmin() {
		writeError(w, h.log, r, apperrors.PermissionDenied("admin role required"))
		return
	}

	// Path format: /api/admin/scheduler/run or /api/admin/projects/{projectID}/members/{userID}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin"), "/"), "/")

	switch {
	case len(parts) == 2 && parts[0] == "scheduler" && parts[1] == "run" && r.Method == http.MethodPost:
		h.runScheduler(w, r, identity)
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "members" && r.Method == http.MethodPut:
		h.setMember(w, r, identity, parts[1], parts[3])
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "members" && r.Method == http.MethodDelete:
		h.removeMember(w, r, identity, parts[1], parts[3])
	default:
		http.NotFound(w, r)
	}
}

// runScheduler handles POST /api/admin/scheduler/run
func (h *AdminHandler) runScheduler(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	promoted, err := h.scheduler.RunOnce(r.Context())
	if errors.Is(err, service.ErrPromotionRunning) {
		writeError(w, h.log, r, apperrors.Wrap(apperrors.CodeInvalidState, "promotion already running", err))
		return
	}
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	h.log.Info("Manual promotion pass", utils.SafeAttr("admin", identity.UserID), "promoted", len(promoted))
	writeJSON(w, http.StatusOK, PromotionResponse{Promoted: promoted})
}

// setMember handles PUT /api/admin/projects/{projectID}/members/{userID}
func (h *AdminHandler) setMember(w http.ResponseWriter, r *http.Request, identity models.Identity, projectID, userID string) {
	var req MemberRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, r, apperrors.Wrap(apperrors.CodeValidation, "invalid member", err))
		return
	}

	if err := h.directory.SetProjectMember(r.Context(), projectID, userID, req.Role); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	h.log.Info("Project member set",
		utils.SafeAttr("admin", identity.UserID),
		utils.SafeAttr("project_id", projectID),
		utils.SafeAttr("user_id", userID),
		"role", req.Role)
	w.WriteHeader(http.StatusNoContent)
}

// removeMember handles DELETE /api/admin/projects/{projectID}/members/{userID}
func (h *AdminHandler) removeMember(w http.ResponseWriter, r *http.Request, identity models.Identity, projectID, userID string) {
	if err := h.directory.RemoveProjectMember(r.Context(), projectID, userID); err != nil {
		writeError(w, h.log, r, err)
		return
	}

	h.log.Info("Project member removed",
		utils.SafeAttr("admin", identity.UserID),
		utils.SafeAttr("project_id", projectID),
		utils.SafeAttr("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}
