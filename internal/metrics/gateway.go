// Package metrics exports Prometheus instrumentation for the gateway and its
// connection pool.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

const namespace = "subadmin"

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeDenied   = "denied"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	relationNone    = ""
)

// Gateway wraps a gateway.Gateway and records every call.
type Gateway struct {
	next     gateway.Gateway
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// InstrumentGateway registers the gateway collectors on reg and returns the
// instrumented wrapper.
func InstrumentGateway(next gateway.Gateway, reg prometheus.Registerer) *Gateway {
	g := &Gateway{
		next: next,
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_operations_total",
			Help:      "Gateway operations by operation, relation and outcome",
		}, []string{"operation", "relation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_operation_duration_seconds",
			Help:      "Gateway operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "relation"}),
	}
	reg.MustRegister(g.total, g.duration)
	return g
}

var _ gateway.Gateway = (*Gateway)(nil)

func (g *Gateway) observe(op, relation string, start time.Time, err error) {
	g.total.WithLabelValues(op, relation, outcome(err)).Inc()
	g.duration.WithLabelValues(op, relation).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, gateway.ErrMultipleRows):
		return OutcomeNotFound
	case errors.Is(err, gateway.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, gateway.ErrPermissionDenied):
		return OutcomeDenied
	case errors.Is(err, gateway.ErrInvalidGrant):
		return OutcomeRejected
	}
	return OutcomeError
}

func (g *Gateway) Select(ctx context.Context, q gateway.Query, dest any) error {
	start := time.Now()
	err := g.next.Select(ctx, q, dest)
	g.observe("select", q.Relation, start, err)
	return err
}

func (g *Gateway) Insert(ctx context.Context, relation string, record any) error {
	start := time.Now()
	err := g.next.Insert(ctx, relation, record)
	g.observe("insert", relation, start, err)
	return err
}

func (g *Gateway) Update(ctx context.Context, relation string, patch map[string]any, filters ...gateway.Filter) error {
	start := time.Now()
	err := g.next.Update(ctx, relation, patch, filters...)
	g.observe("update", relation, start, err)
	return err
}

func (g *Gateway) GetSession(ctx context.Context) (*model.Session, error) {
	return g.next.GetSession(ctx)
}

func (g *Gateway) OnSessionChange(fn gateway.SessionListener) func() {
	return g.next.OnSessionChange(fn)
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	start := time.Now()
	session, err := g.next.SignInWithPassword(ctx, email, password)
	g.observe("sign_in", relationNone, start, err)
	return session, err
}

func (g *Gateway) SignOut(ctx context.Context) error {
	start := time.Now()
	err := g.next.SignOut(ctx)
	g.observe("sign_out", relationNone, start, err)
	return err
}

func (g *Gateway) Ping(ctx context.Context) error {
	start := time.Now()
	err := g.next.Ping(ctx)
	g.observe("ping", relationNone, start, err)
	return err
}
