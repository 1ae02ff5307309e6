package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edvin/subadmin/internal/core"
	"github.com/edvin/subadmin/internal/gateway"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse wraps list results.
type ListResponse struct {
	Items any `json:"items"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteList writes items under "items". A nil slice is rendered as [].
func WriteList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: items})
}

// ServiceErrorStatus maps a service error onto an HTTP status.
func ServiceErrorStatus(err error) int {
	var (
		validationErr *core.ValidationError
		lookupErr     *core.LookupError
		fetchErr      *core.FetchError
		updateErr     *core.UpdateError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrDuplicateSubscription):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &lookupErr), errors.As(err, &fetchErr), errors.As(err, &updateErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteServiceError writes err with the status ServiceErrorStatus picks.
func WriteServiceError(w http.ResponseWriter, err error) {
	WriteError(w, ServiceErrorStatus(err), err.Error())
}
