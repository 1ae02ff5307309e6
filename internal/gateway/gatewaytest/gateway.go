// Package gatewaytest provides a testify mock of gateway.Gateway.
package gatewaytest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

// Gateway is a mock gateway. Select expectations return a JSON array string
// which is decoded into the destination the same way real backends do, so
// Single queries over "[]" yield gateway.ErrNotFound.
type Gateway struct {
	mock.Mock
	listeners gateway.Listeners
}

func (g *Gateway) Select(ctx context.Context, q gateway.Query, dest any) error {
	args := g.Called(ctx, q, dest)
	if err := args.Error(1); err != nil {
		return err
	}
	if data, ok := args.Get(0).(string); ok && data != "" {
		return gateway.DecodeRows([]byte(data), q, dest)
	}
	return nil
}

func (g *Gateway) Insert(ctx context.Context, relation string, record any) error {
	args := g.Called(ctx, relation, record)
	return args.Error(0)
}

func (g *Gateway) Update(ctx context.Context, relation string, patch map[string]any, filters ...gateway.Filter) error {
	args := g.Called(ctx, relation, patch, filters)
	return args.Error(0)
}

func (g *Gateway) GetSession(ctx context.Context) (*model.Session, error) {
	args := g.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

// OnSessionChange is not recorded; use Emit to drive listeners.
func (g *Gateway) OnSessionChange(fn gateway.SessionListener) func() {
	return g.listeners.Add(fn)
}

// Emit notifies listeners registered through OnSessionChange.
func (g *Gateway) Emit(event string, session *model.Session) {
	g.listeners.Notify(event, session)
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	args := g.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (g *Gateway) SignOut(ctx context.Context) error {
	args := g.Called(ctx)
	return args.Error(0)
}

func (g *Gateway) Ping(ctx context.Context) error {
	args := g.Called(ctx)
	return args.Error(0)
}

// Relation matches a Select query by relation name.
func Relation(name string) any {
	return mock.MatchedBy(func(q gateway.Query) bool {
		return q.Relation == name
	})
}
