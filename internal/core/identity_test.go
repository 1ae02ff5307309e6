package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/gateway/gatewaytest"
	"github.com/edvin/subadmin/internal/model"
)

const anaRow = `[{"id":7,"user_name":"Ana","email":"ana@x.com","user_identificator":"ext-7"}]`

func newResolver(gw gateway.Gateway, store IdentityStore) *IdentityResolver {
	return NewIdentityResolver(gw, store, zerolog.Nop())
}

func TestIdentityResolver_Login_Managed(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	store := &MemoryStore{}
	r := newResolver(gw, store)
	ctx := context.Background()

	session := &model.Session{AccessToken: "tok", User: model.SessionUser{ID: "uid-1", Email: "ops@x.com"}}
	gw.On("SignInWithPassword", ctx, "ops@x.com", "secret").Return(session, nil)

	identity, err := r.Login(ctx, "ops@x.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, model.IdentitySourceManaged, identity.Source)
	assert.Equal(t, "uid-1", identity.Subject)

	// Managed identities are not persisted.
	stored, _ := store.Load()
	assert.Nil(t, stored)
	gw.AssertNotCalled(t, "Select", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdentityResolver_Login_FallbackPersistsAndRestores(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	store := NewFileStore(filepath.Join(t.TempDir(), "identity.json"))
	r := newResolver(gw, store)
	ctx := context.Background()

	gw.On("SignInWithPassword", ctx, "ana@x.com", "wrong").Return(nil, gateway.ErrInvalidGrant)
	gw.On("Select", ctx, mock.MatchedBy(func(q gateway.Query) bool {
		return q.Relation == model.RelationViewUser && q.Single &&
			len(q.Filters) == 1 && q.Filters[0] == gateway.Eq("email", "ana@x.com")
	}), mock.Anything).Return(anaRow, nil).Once()

	identity, err := r.Login(ctx, "ana@x.com", "wrong")
	require.NoError(t, err)
	assert.Equal(t, model.IdentitySourceFallback, identity.Source)
	assert.Equal(t, "7", identity.Subject)
	assert.Equal(t, "Ana", identity.Name)
	require.NotNil(t, identity.User)
	assert.Equal(t, int64(7), identity.User.ID)

	// A fresh process restores the identity and never asks the gateway.
	fresh := &gatewaytest.Gateway{}
	restored := newResolver(fresh, store)
	require.NoError(t, restored.Restore())
	current := restored.GetCurrentIdentity(ctx)
	require.NotNil(t, current)
	assert.Equal(t, identity.Subject, current.Subject)
	assert.Equal(t, identity.Email, current.Email)
	assert.Equal(t, int64(7), current.User.ID)
	fresh.AssertNotCalled(t, "GetSession", mock.Anything)
	gw.AssertExpectations(t)
}

func TestIdentityResolver_Login_FallbackAmbiguous(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	r := newResolver(gw, &MemoryStore{})
	ctx := context.Background()

	gw.On("SignInWithPassword", ctx, "dup@x.com", "pw").Return(nil, gateway.ErrInvalidGrant)
	gw.On("Select", ctx, gatewaytest.Relation(model.RelationViewUser), mock.Anything).
		Return(`[{"id":1,"email":"dup@x.com"},{"id":2,"email":"dup@x.com"}]`, nil)

	_, err := r.Login(ctx, "dup@x.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIdentityResolver_Login_NoMatch(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	store := &MemoryStore{}
	r := newResolver(gw, store)
	ctx := context.Background()

	gw.On("SignInWithPassword", ctx, "nobody@x.com", "pw").Return(nil, gateway.ErrInvalidGrant)
	gw.On("Select", ctx, gatewaytest.Relation(model.RelationViewUser), mock.Anything).Return(`[]`, nil)

	identity, err := r.Login(ctx, "nobody@x.com", "pw")
	assert.Nil(t, identity)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	stored, _ := store.Load()
	assert.Nil(t, stored)
}

func TestIdentityResolver_Login_EmptySecretSkipsFallback(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	r := newResolver(gw, &MemoryStore{})
	ctx := context.Background()

	gw.On("SignInWithPassword", ctx, "ana@x.com", "").Return(nil, gateway.ErrInvalidGrant)

	_, err := r.Login(ctx, "ana@x.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	gw.AssertNotCalled(t, "Select", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdentityResolver_Login_ManagedUnavailable(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	r := newResolver(gw, &MemoryStore{})
	ctx := context.Background()

	gw.On("SignInWithPassword", ctx, "ana@x.com", "pw").Return(nil, errors.New("auth API request: connection refused"))
	gw.On("Select", ctx, gatewaytest.Relation(model.RelationViewUser), mock.Anything).Return(anaRow, nil)

	identity, err := r.Login(ctx, "ana@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.IdentitySourceFallback, identity.Source)
}

func TestIdentityResolver_Login_LookupFailure(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	r := newResolver(gw, &MemoryStore{})
	ctx := context.Background()

	gw.On("SignInWithPassword", ctx, "ana@x.com", "pw").Return(nil, gateway.ErrInvalidGrant)
	gw.On("Select", ctx, gatewaytest.Relation(model.RelationViewUser), mock.Anything).Return("", errors.New("timeout"))

	_, err := r.Login(ctx, "ana@x.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIdentityResolver_Login_ManagedReplacesFallback(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	store := &MemoryStore{}
	require.NoError(t, store.Save(&model.Identity{Source: model.IdentitySourceFallback, Subject: "7"}))
	r := newResolver(gw, store)
	require.NoError(t, r.Restore())
	ctx := context.Background()

	session := &model.Session{AccessToken: "tok", User: model.SessionUser{ID: "uid-1"}}
	gw.On("SignInWithPassword", ctx, "ops@x.com", "secret").Return(session, nil)
	gw.On("GetSession", ctx).Return(session, nil)

	_, err := r.Login(ctx, "ops@x.com", "secret")
	require.NoError(t, err)

	stored, _ := store.Load()
	assert.Nil(t, stored)
	assert.Equal(t, "uid-1", r.GetCurrentIdentity(ctx).Subject)
}

func TestIdentityResolver_GetCurrentIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("managed session", func(t *testing.T) {
		gw := &gatewaytest.Gateway{}
		gw.On("GetSession", ctx).Return(&model.Session{User: model.SessionUser{ID: "uid-1", Email: "ops@x.com"}}, nil)
		identity := newResolver(gw, &MemoryStore{}).GetCurrentIdentity(ctx)
		require.NotNil(t, identity)
		assert.Equal(t, "ops@x.com", identity.Email)
	})

	t.Run("no session", func(t *testing.T) {
		gw := &gatewaytest.Gateway{}
		gw.On("GetSession", ctx).Return(nil, nil)
		assert.Nil(t, newResolver(gw, &MemoryStore{}).GetCurrentIdentity(ctx))
	})

	t.Run("gateway error", func(t *testing.T) {
		gw := &gatewaytest.Gateway{}
		gw.On("GetSession", ctx).Return(nil, errors.New("boom"))
		assert.Nil(t, newResolver(gw, &MemoryStore{}).GetCurrentIdentity(ctx))
	})
}

func TestIdentityResolver_SubscribeToChanges(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	r := newResolver(gw, &MemoryStore{})

	var events []string
	unsubscribe := r.SubscribeToChanges(func(event string, _ *model.Session) { events = append(events, event) })
	gw.Emit(gateway.EventSignedIn, &model.Session{})
	unsubscribe()
	gw.Emit(gateway.EventSignedOut, nil)

	assert.Equal(t, []string{gateway.EventSignedIn}, events)
}

func TestIdentityResolver_Logout(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	store := &MemoryStore{}
	require.NoError(t, store.Save(&model.Identity{Source: model.IdentitySourceFallback, Subject: "7"}))
	r := newResolver(gw, store)
	require.NoError(t, r.Restore())
	ctx := context.Background()

	gw.On("SignOut", ctx).Return(nil)
	gw.On("GetSession", ctx).Return(nil, nil)

	require.NoError(t, r.Logout(ctx))
	stored, _ := store.Load()
	assert.Nil(t, stored)
	assert.Nil(t, r.GetCurrentIdentity(ctx))
}

type failingStore struct{ MemoryStore }

func (s *failingStore) Clear() error { return errors.New("disk full") }

func TestIdentityResolver_Logout_JoinsErrors(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	r := newResolver(gw, &failingStore{})
	ctx := context.Background()

	gw.On("SignOut", ctx).Return(errors.New("network down"))

	err := r.Logout(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign out: network down")
	assert.Contains(t, err.Error(), "clear identity: disk full")
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity.json")
	store := NewFileStore(path)

	identity, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, identity)

	want := &model.Identity{Source: model.IdentitySourceFallback, Subject: "7", Email: "ana@x.com", Name: "Ana"}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	got, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse identity file")
}
