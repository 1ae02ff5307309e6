package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (t tokenResponse) session(now time.Time) *model.Session {
	s := &model.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         model.SessionUser{ID: t.User.ID, Email: t.User.Email},
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	return s
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	tok, err := c.token(ctx, "password", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	session := tok.session(c.now())
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.listeners.Notify(gateway.EventSignedIn, session)
	return session, nil
}

// GetSession returns the current session, refreshing it once when it has
// expired. A failed refresh signs the client out locally.
func (c *Client) GetSession(ctx context.Context) (*model.Session, error) {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()

	if session == nil || !session.Expired(c.now()) {
		return session, nil
	}
	if session.RefreshToken == "" {
		c.clearSession()
		return nil, nil
	}

	tok, err := c.token(ctx, "refresh_token", map[string]string{"refresh_token": session.RefreshToken})
	if err != nil {
		c.clearSession()
		if errors.Is(err, gateway.ErrInvalidGrant) {
			return nil, nil
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	refreshed := tok.session(c.now())
	c.mu.Lock()
	c.session = refreshed
	c.mu.Unlock()

	c.listeners.Notify(gateway.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

func (c *Client) OnSessionChange(fn gateway.SessionListener) func() {
	return c.listeners.Add(fn)
}

// SignOut revokes the session server-side and always forgets it locally.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	if err == nil {
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
		_, err = c.do(req)
	}
	c.clearSession()

	// An already revoked token leaves nothing to revoke.
	var apiErr *gateway.Error
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (c *Client) clearSession() {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.mu.Unlock()
	if had {
		c.listeners.Notify(gateway.EventSignedOut, nil)
	}
}

func (c *Client) token(ctx context.Context, grant string, body map[string]string) (*tokenResponse, error) {
	params := url.Values{"grant_type": {grant}}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token", params, body)
	if err != nil {
		return nil, err
	}
	// Token requests authenticate the project, never a user.
	req.Header.Set("Authorization", "Bearer "+c.anonKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", gateway.ErrInvalidGrant, authErrorMessage(decodeError(resp)))
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token response without access token")
	}
	return &tok, nil
}

// authErrorMessage extracts the GoTrue error text, which uses different keys
// than the data API.
func authErrorMessage(err error) string {
	var apiErr *gateway.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
	}
	if json.Unmarshal([]byte(apiErr.Message), &body) == nil {
		for _, m := range []string{body.ErrorDescription, body.Msg, body.Error} {
			if m != "" {
				return m
			}
		}
	}
	return apiErr.Message
}
