// Package pg implements gateway.Gateway directly over Postgres. Managed
// authentication checks argon2id password hashes in admin_account and keeps
// the session in process memory.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/subadmin/internal/crypto"
	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

// DB is the subset of *pgxpool.Pool the gateway uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const DefaultSessionTTL = 12 * time.Hour

type Gateway struct {
	db         DB
	sessionTTL time.Duration
	now        func() time.Time

	mu        sync.RWMutex
	session   *model.Session
	listeners gateway.Listeners
}

func New(db DB, sessionTTL time.Duration) *Gateway {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Gateway{db: db, sessionTTL: sessionTTL, now: time.Now}
}

var _ gateway.Gateway = (*Gateway)(nil)

func (g *Gateway) Select(ctx context.Context, q gateway.Query, dest any) error {
	sql, args, err := buildSelect(q)
	if err != nil {
		return fmt.Errorf("select %s: %w", q.Relation, err)
	}

	var raw []byte
	if err := g.db.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		return fmt.Errorf("select %s: %w", q.Relation, translate(err))
	}
	return gateway.DecodeRows(raw, q, dest)
}

func (g *Gateway) Insert(ctx context.Context, relation string, record any) error {
	cols, err := gateway.RecordColumns(record)
	if err != nil {
		return fmt.Errorf("insert %s: %w", relation, err)
	}
	sql, err := buildInsert(relation, cols)
	if err != nil {
		return fmt.Errorf("insert %s: %w", relation, err)
	}
	body, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("insert %s: marshal record: %w", relation, err)
	}

	if _, err := g.db.Exec(ctx, sql, string(body)); err != nil {
		return fmt.Errorf("insert %s: %w", relation, translate(err))
	}
	return nil
}

func (g *Gateway) Update(ctx context.Context, relation string, patch map[string]any, filters ...gateway.Filter) error {
	sql, filterArgs, err := buildUpdate(relation, patch, filters)
	if err != nil {
		return fmt.Errorf("update %s: %w", relation, err)
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("update %s: marshal patch: %w", relation, err)
	}

	args := append([]any{string(body)}, filterArgs...)
	if _, err := g.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update %s: %w", relation, translate(err))
	}
	return nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var id, accountEmail, hash string
	err := g.db.QueryRow(ctx,
		`SELECT id::text, email, password_hash FROM admin_account WHERE email = $1`, email,
	).Scan(&id, &accountEmail, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("sign in: %w", gateway.ErrInvalidGrant)
	}
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", translate(err))
	}
	if !crypto.VerifyPassword(password, hash) {
		return nil, fmt.Errorf("sign in: %w", gateway.ErrInvalidGrant)
	}

	session := &model.Session{
		AccessToken: uuid.NewString(),
		ExpiresAt:   g.now().Add(g.sessionTTL).UTC(),
		User:        model.SessionUser{ID: id, Email: accountEmail},
	}
	g.mu.Lock()
	g.session = session
	g.mu.Unlock()

	g.listeners.Notify(gateway.EventSignedIn, session)
	return session, nil
}

// GetSession returns the current session; an expired one is dropped.
func (g *Gateway) GetSession(_ context.Context) (*model.Session, error) {
	g.mu.RLock()
	session := g.session
	g.mu.RUnlock()

	if session != nil && session.Expired(g.now()) {
		g.clearSession()
		return nil, nil
	}
	return session, nil
}

func (g *Gateway) OnSessionChange(fn gateway.SessionListener) func() {
	return g.listeners.Add(fn)
}

func (g *Gateway) SignOut(_ context.Context) error {
	g.clearSession()
	return nil
}

func (g *Gateway) clearSession() {
	g.mu.Lock()
	had := g.session != nil
	g.session = nil
	g.mu.Unlock()
	if had {
		g.listeners.Notify(gateway.EventSignedOut, nil)
	}
}

// translate maps Postgres errors onto *gateway.Error so callers can match the
// gateway sentinels.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &gateway.Error{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
		}
	}
	return err
}
