package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

const tokenJSON = `{"access_token":"at-1","token_type":"bearer","expires_in":3600,"expires_at":1893456000,"refresh_token":"rt-1","user":{"id":"uid-1","email":"ops@example.com"}}`

func TestClient_SignInWithPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Empty(t, r.Header.Get("Content-Profile"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ops@example.com", body["email"])
		assert.Equal(t, "secret", body["password"])
		_, _ = w.Write([]byte(tokenJSON))
	})

	var events []string
	unsubscribe := c.OnSessionChange(func(event string, _ *model.Session) { events = append(events, event) })
	defer unsubscribe()

	session, err := c.SignInWithPassword(context.Background(), "ops@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "at-1", session.AccessToken)
	assert.Equal(t, "uid-1", session.User.ID)
	assert.Equal(t, time.Unix(1893456000, 0).UTC(), session.ExpiresAt)
	assert.Equal(t, []string{gateway.EventSignedIn}, events)

	c.now = func() time.Time { return time.Unix(1893450000, 0) }
	current, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session, current)
}

func TestClient_SignInWithPassword_InvalidCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
	})

	_, err := c.SignInWithPassword(context.Background(), "ops@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrInvalidGrant)
	assert.Contains(t, err.Error(), "Invalid login credentials")

	session, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestClient_SignInWithPassword_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.SignInWithPassword(context.Background(), "ops@example.com", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, gateway.ErrInvalidGrant)
}

func TestClient_GetSession_Refreshes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rt-0", body["refresh_token"])
		_, _ = w.Write([]byte(tokenJSON))
	})
	c.session = &model.Session{AccessToken: "at-0", RefreshToken: "rt-0", ExpiresAt: time.Now().Add(-time.Minute)}

	var events []string
	c.OnSessionChange(func(event string, _ *model.Session) { events = append(events, event) })

	session, err := c.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "at-1", session.AccessToken)
	assert.Equal(t, []string{gateway.EventTokenRefreshed}, events)
}

func TestClient_GetSession_RefreshRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh Token Not Found"}`))
	})
	c.session = &model.Session{AccessToken: "at-0", RefreshToken: "rt-0", ExpiresAt: time.Now().Add(-time.Minute)}

	var events []string
	c.OnSessionChange(func(event string, _ *model.Session) { events = append(events, event) })

	session, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, []string{gateway.EventSignedOut}, events)
}

func TestClient_SignOut(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	c.session = &model.Session{AccessToken: "at-1"}

	var events []string
	c.OnSessionChange(func(event string, _ *model.Session) { events = append(events, event) })

	require.NoError(t, c.SignOut(context.Background()))
	assert.Equal(t, []string{gateway.EventSignedOut}, events)

	// Signed out already: nothing to revoke.
	require.NoError(t, c.SignOut(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestClient_SignOut_RevokedToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c.session = &model.Session{AccessToken: "at-1"}

	require.NoError(t, c.SignOut(context.Background()))
	assert.Nil(t, c.session)
}

func TestClient_SignOut_ServerErrorClearsLocally(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.session = &model.Session{AccessToken: "at-1"}

	err := c.SignOut(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign out")
	assert.Nil(t, c.session)
}
