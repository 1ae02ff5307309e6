// Package bootstrap wires the gateway and services shared by the API server
// and the operator console.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/config"
	"github.com/edvin/subadmin/internal/core"
	"github.com/edvin/subadmin/internal/db"
	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/gateway/pg"
	"github.com/edvin/subadmin/internal/gateway/rest"
	"github.com/edvin/subadmin/internal/metrics"
	"github.com/edvin/subadmin/internal/model"
)

// OpenGateway builds the configured backend wrapped in operation metrics.
// The returned close function releases backend resources.
func OpenGateway(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger zerolog.Logger) (gateway.Gateway, func(), error) {
	var (
		gw      gateway.Gateway
		closeFn = func() {}
	)

	switch cfg.Backend {
	case model.BackendSupabase:
		gw = rest.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseSchema)
		logger.Info().Str("url", cfg.SupabaseURL).Str("schema", cfg.SupabaseSchema).Msg("using hosted gateway")

	case model.BackendPostgres:
		if cfg.MigrateOnStart {
			if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Msg("database migrations applied")
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if reg != nil {
			metrics.RegisterPoolMetrics(reg, pool)
		}
		gw = pg.New(pool, cfg.SessionTTL)
		closeFn = pool.Close
		logger.Info().Msg("using postgres gateway")

	default:
		return nil, nil, fmt.Errorf("unknown gateway backend %q", cfg.Backend)
	}

	if reg != nil {
		gw = metrics.InstrumentGateway(gw, reg)
	}
	return gw, closeFn, nil
}

// NewServices builds the services over gw and restores the persisted
// fallback identity.
func NewServices(cfg *config.Config, gw gateway.Gateway, logger zerolog.Logger) (*core.Services, error) {
	mode, err := core.ParseListingMode(cfg.ListingMode)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = core.ModeSubscriptions
	}

	services := core.NewServices(gw, core.NewFileStore(cfg.IdentityFile), logger, mode, cfg.DefaultAgentID)
	if err := services.Identity.Restore(); err != nil {
		return nil, err
	}
	if identity := services.Identity.GetCurrentIdentity(context.Background()); identity != nil {
		logger.Info().Str("source", identity.Source).Str("email", identity.Email).Msg("restored operator identity")
	}
	return services, nil
}
