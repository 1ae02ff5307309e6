package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/subadmin/internal/config"
	"github.com/edvin/subadmin/internal/gateway/gatewaytest"
	"github.com/edvin/subadmin/internal/metrics"
	"github.com/edvin/subadmin/internal/model"
)

func TestOpenGateway_Supabase(t *testing.T) {
	cfg := &config.Config{Backend: model.BackendSupabase, SupabaseURL: "https://example.supabase.co", SupabaseAnonKey: "anon"}

	gw, closeFn, err := OpenGateway(context.Background(), cfg, prometheus.NewRegistry(), zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &metrics.Gateway{}, gw)
}

func TestOpenGateway_UnknownBackend(t *testing.T) {
	_, _, err := OpenGateway(context.Background(), &config.Config{Backend: "mongo"}, nil, zerolog.Nop())
	assert.EqualError(t, err, `unknown gateway backend "mongo"`)
}

func TestNewServices_RestoresIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"source":"fallback","subject":"7","email":"ana@x.com","name":"Ana"}`), 0o600))

	gw := &gatewaytest.Gateway{}
	cfg := &config.Config{IdentityFile: path, DefaultAgentID: 1}

	services, err := NewServices(cfg, gw, zerolog.Nop())
	require.NoError(t, err)

	identity := services.Identity.GetCurrentIdentity(context.Background())
	require.NotNil(t, identity)
	assert.Equal(t, "ana@x.com", identity.Email)
	gw.AssertNotCalled(t, "GetSession", mock.Anything)
}

func TestNewServices_BadListingMode(t *testing.T) {
	cfg := &config.Config{IdentityFile: filepath.Join(t.TempDir(), "identity.json"), ListingMode: "everything"}

	_, err := NewServices(cfg, &gatewaytest.Gateway{}, zerolog.Nop())
	assert.Error(t, err)
}
