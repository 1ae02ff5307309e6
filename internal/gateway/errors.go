package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("no rows found")
	ErrMultipleRows     = errors.New("multiple rows found")
	ErrConflict         = errors.New("unique constraint violation")
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidGrant is returned by SignInWithPassword when the managed auth
	// system rejects the credentials.
	ErrInvalidGrant    = errors.New("invalid login credentials")
	ErrUnknownRelation = errors.New("unknown relation")
)

// Codes reported by PostgREST and Postgres that map onto the sentinels.
const (
	CodeNoRows           = "PGRST116"
	CodeUniqueViolation  = "23505"
	CodePermissionDenied = "42501"
)

// Error is a failure reported by the backing store.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("%s (status %d, code %s)", e.Message, e.Status, e.Code)
	case e.Code != "":
		return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

// Is maps store codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == CodeNoRows
	case ErrConflict:
		return e.Code == CodeUniqueViolation
	case ErrPermissionDenied:
		return e.Code == CodePermissionDenied
	}
	return false
}
