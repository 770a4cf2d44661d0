package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeNotFound means the room or participant is absent, or the room is in
	// a status where the target cannot be addressed.
	CodeNotFound Code = "NOT_FOUND"
	// CodePermissionDenied means the role or ownership check failed.
	CodePermissionDenied Code = "PERMISSION_DENIED"
	// CodeInvalidState means the room status does not allow the operation.
	CodeInvalidState Code = "INVALID_STATE"
	// CodeValidation means the input was malformed.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeInternal covers storage and other unexpected failures.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeInvalidState:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
