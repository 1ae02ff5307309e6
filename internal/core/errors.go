package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned by Login when every authentication
	// strategy rejected the operator.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateSubscription is returned when the (user, agent) pair already
	// has a subscription.
	ErrDuplicateSubscription = errors.New("subscription already exists for this user and agent")
)

// ValidationError reports an input field that cannot be written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// LookupError is a failed existence check, distinct from "not found".
type LookupError struct {
	Err error
}

func (e *LookupError) Error() string { return "check existing subscription: " + e.Err.Error() }
func (e *LookupError) Unwrap() error { return e.Err }

// FetchError is a failed listing. The rows returned alongside it are the
// last good result, possibly none.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "list subscriptions: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// UpdateError carries the failures of the two independent writes of a
// combined edit. At least one field is non-nil.
type UpdateError struct {
	Subscription error
	User         error
}

func (e *UpdateError) Error() string {
	switch {
	case e.Subscription != nil && e.User != nil:
		return fmt.Sprintf("update subscription: %v; update user: %v", e.Subscription, e.User)
	case e.Subscription != nil:
		return "update subscription: " + e.Subscription.Error()
	case e.User != nil:
		return "update user: " + e.User.Error()
	}
	return "update failed"
}

func (e *UpdateError) Unwrap() []error {
	var errs []error
	if e.Subscription != nil {
		errs = append(errs, e.Subscription)
	}
	if e.User != nil {
		errs = append(errs, e.User)
	}
	return errs
}
