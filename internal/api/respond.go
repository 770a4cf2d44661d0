package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/navikt/meetrooms/internal/errors"
	"github.com/navikt/meetrooms/internal/utils"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error onto its HTTP status. Internal failures are
// logged and hidden from the caller.
func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	message := err.Error()
	if code == apperrors.CodeInternal {
		log.Error("Request failed", "method", r.Method, "path", utils.SanitizeLogString(r.URL.Path), "error", err)
		message = "Internal server error"
	}
	writeJSON(w, code.HTTPStatus(), ErrorResponse{Code: code, Message: message})
}

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperrors.Wrap(apperrors.CodeValidation, "invalid request body", err)
}
