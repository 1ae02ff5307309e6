package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/gateway/gatewaytest"
	"github.com/edvin/subadmin/internal/model"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("select: %w", gateway.ErrNotFound), OutcomeNotFound},
		{gateway.ErrMultipleRows, OutcomeNotFound},
		{&gateway.Error{Code: gateway.CodeUniqueViolation}, OutcomeConflict},
		{&gateway.Error{Code: gateway.CodePermissionDenied}, OutcomeDenied},
		{gateway.ErrInvalidGrant, OutcomeRejected},
		{errors.New("boom"), OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outcome(tt.err))
	}
}

func TestInstrumentGateway_CountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	next := &gatewaytest.Gateway{}
	g := InstrumentGateway(next, reg)
	ctx := context.Background()

	next.On("Select", ctx, gatewaytest.Relation("subscription"), mock.Anything).Return(`[]`, nil).Twice()
	next.On("Insert", ctx, "subscription", mock.Anything).Return(&gateway.Error{Code: gateway.CodeUniqueViolation}).Once()
	next.On("Ping", ctx).Return(nil).Once()

	var rows []map[string]any
	require.NoError(t, g.Select(ctx, gateway.Query{Relation: "subscription"}, &rows))
	require.NoError(t, g.Select(ctx, gateway.Query{Relation: "subscription"}, &rows))
	assert.ErrorIs(t, g.Insert(ctx, "subscription", map[string]any{"user_id": 1}), gateway.ErrConflict)
	require.NoError(t, g.Ping(ctx))

	assert.Equal(t, 2.0, testutil.ToFloat64(g.total.WithLabelValues("select", "subscription", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(g.total.WithLabelValues("insert", "subscription", OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(g.total.WithLabelValues("ping", "", OutcomeOK)))
	next.AssertExpectations(t)
}

func TestInstrumentGateway_PassesSessionCalls(t *testing.T) {
	next := &gatewaytest.Gateway{}
	g := InstrumentGateway(next, prometheus.NewRegistry())
	ctx := context.Background()

	next.On("GetSession", ctx).Return(nil, nil).Once()
	session, err := g.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	var got []string
	unsubscribe := g.OnSessionChange(func(event string, _ *model.Session) { got = append(got, event) })
	next.Emit(gateway.EventSignedOut, nil)
	unsubscribe()
	next.Emit(gateway.EventSignedOut, nil)
	assert.Equal(t, []string{gateway.EventSignedOut}, got)
}
