// Package gateway defines the remote data store contract the admin is built on:
// filtered selects with relationship expansion, inserts, updates and a managed
// authentication session.
package gateway

import (
	"context"

	"github.com/edvin/subadmin/internal/model"
)

// Gateway is a query/update capability over named relations plus managed auth.
type Gateway interface {
	// Select runs q and decodes the result into dest: a pointer to a slice, or,
	// when q.Single is set, a pointer to a single record.
	Select(ctx context.Context, q Query, dest any) error
	// Insert writes one record. The record is marshalled to JSON; omitted keys
	// keep their column defaults.
	Insert(ctx context.Context, relation string, record any) error
	// Update applies patch to every row matching filters. A nil patch value
	// writes NULL.
	Update(ctx context.Context, relation string, patch map[string]any, filters ...Filter) error

	// GetSession returns the active managed session, or nil when there is none.
	GetSession(ctx context.Context) (*model.Session, error)
	// OnSessionChange registers fn for managed session transitions.
	OnSessionChange(fn SessionListener) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context) error

	Ping(ctx context.Context) error
}

// Session change events.
const (
	EventSignedIn       = "SIGNED_IN"
	EventSignedOut      = "SIGNED_OUT"
	EventTokenRefreshed = "TOKEN_REFRESHED"
)

// SessionListener receives session transitions. session is nil on sign-out.
type SessionListener func(event string, session *model.Session)
