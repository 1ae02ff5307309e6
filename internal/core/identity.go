package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

// Authenticator is one login strategy. It returns ErrInvalidCredentials when
// it rejects the operator and any other error when it could not decide.
type Authenticator interface {
	Name() string
	Authenticate(ctx context.Context, email, secret string) (*model.Identity, error)
}

// ManagedAuthenticator signs in through the gateway's auth system.
type ManagedAuthenticator struct {
	gw gateway.Gateway
}

func NewManagedAuthenticator(gw gateway.Gateway) *ManagedAuthenticator {
	return &ManagedAuthenticator{gw: gw}
}

func (a *ManagedAuthenticator) Name() string { return model.IdentitySourceManaged }

func (a *ManagedAuthenticator) Authenticate(ctx context.Context, email, secret string) (*model.Identity, error) {
	session, err := a.gw.SignInWithPassword(ctx, email, secret)
	if errors.Is(err, gateway.ErrInvalidGrant) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return model.IdentityFromSession(session), nil
}

// FallbackAuthenticator admits operators listed in view_user by exact email.
// It does not verify the secret against any stored credential; a non-empty
// secret and a single matching row are enough.
type FallbackAuthenticator struct {
	gw gateway.Gateway
}

func NewFallbackAuthenticator(gw gateway.Gateway) *FallbackAuthenticator {
	return &FallbackAuthenticator{gw: gw}
}

func (a *FallbackAuthenticator) Name() string { return model.IdentitySourceFallback }

func (a *FallbackAuthenticator) Authenticate(ctx context.Context, email, secret string) (*model.Identity, error) {
	if email == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	var user model.ViewUser
	err := a.gw.Select(ctx, gateway.Query{
		Relation: model.RelationViewUser,
		Filters:  []gateway.Filter{gateway.Eq("email", email)},
		Single:   true,
	}, &user)
	if errors.Is(err, gateway.ErrNotFound) || errors.Is(err, gateway.ErrMultipleRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up fallback identity: %w", err)
	}

	return &model.Identity{
		Source:  model.IdentitySourceFallback,
		Subject: strconv.FormatInt(user.ID, 10),
		Email:   user.EmailOrEmpty(),
		Name:    user.UserName,
		User:    &user,
	}, nil
}

// IdentityResolver tracks the operator the process acts for. The fallback
// identity lives in memory and in the store; managed sessions live in the
// gateway.
type IdentityResolver struct {
	gw         gateway.Gateway
	store      IdentityStore
	strategies []Authenticator
	logger     zerolog.Logger

	mu       sync.RWMutex
	fallback *model.Identity
}

// NewIdentityResolver tries managed authentication first, then the fallback table.
func NewIdentityResolver(gw gateway.Gateway, store IdentityStore, logger zerolog.Logger) *IdentityResolver {
	return &IdentityResolver{
		gw:    gw,
		store: store,
		strategies: []Authenticator{
			NewManagedAuthenticator(gw),
			NewFallbackAuthenticator(gw),
		},
		logger: logger,
	}
}

// Restore loads the persisted fallback identity. Call once on start.
func (r *IdentityResolver) Restore() error {
	identity, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("restore identity: %w", err)
	}
	r.mu.Lock()
	r.fallback = identity
	r.mu.Unlock()
	return nil
}

// GetCurrentIdentity returns the restored fallback identity without a
// gateway round trip, else the managed session's identity, else nil.
func (r *IdentityResolver) GetCurrentIdentity(ctx context.Context) *model.Identity {
	r.mu.RLock()
	fallback := r.fallback
	r.mu.RUnlock()
	if fallback != nil {
		return fallback
	}

	session, err := r.gw.GetSession(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("get managed session")
		return nil
	}
	return model.IdentityFromSession(session)
}

// SubscribeToChanges notifies fn of managed session changes. Fallback
// logins and logouts are not reported.
func (r *IdentityResolver) SubscribeToChanges(fn gateway.SessionListener) func() {
	return r.gw.OnSessionChange(fn)
}

func (r *IdentityResolver) Login(ctx context.Context, email, secret string) (*model.Identity, error) {
	for _, s := range r.strategies {
		identity, err := s.Authenticate(ctx, email, secret)
		if err == nil {
			r.adopt(identity)
			r.logger.Info().Str("source", identity.Source).Str("email", identity.Email).Msg("operator logged in")
			return identity, nil
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			r.logger.Warn().Err(err).Str("strategy", s.Name()).Msg("authentication strategy failed")
		}
	}
	r.logger.Info().Str("email", email).Msg("login rejected")
	return nil, ErrInvalidCredentials
}

// adopt makes identity current. Only fallback identities are persisted; a
// managed login replaces any stored fallback identity.
func (r *IdentityResolver) adopt(identity *model.Identity) {
	var err error
	r.mu.Lock()
	if identity.Source == model.IdentitySourceFallback {
		r.fallback = identity
		err = r.store.Save(identity)
	} else if r.fallback != nil {
		r.fallback = nil
		err = r.store.Clear()
	}
	r.mu.Unlock()
	if err != nil {
		r.logger.Warn().Err(err).Msg("persist identity")
	}
}

// Logout ends the managed session and forgets the fallback identity. Both
// steps always run.
func (r *IdentityResolver) Logout(ctx context.Context) error {
	var errs []error
	if err := r.gw.SignOut(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sign out: %w", err))
	}

	r.mu.Lock()
	r.fallback = nil
	r.mu.Unlock()
	if err := r.store.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("clear identity: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		r.logger.Error().Err(err).Msg("logout")
		return err
	}
	r.logger.Info().Msg("operator logged out")
	return nil
}
