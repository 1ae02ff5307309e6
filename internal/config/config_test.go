package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/subadmin/internal/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GATEWAY_BACKEND", "SUPABASE_URL", "SUPABASE_ANON_KEY", "SUPABASE_SCHEMA",
		"DATABASE_URL", "MIGRATE_ON_START", "SESSION_TTL", "HTTP_LISTEN_ADDR",
		"LOG_LEVEL", "CORS_ORIGINS", "SERVICE_NAME", "DEFAULT_AGENT_ID",
		"LISTING_MODE", "IDENTITY_FILE",
	} {
		// Setenv first so the original value is restored after the test.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	// Keep a stray .env in the package directory from leaking in.
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, model.BackendSupabase, cfg.Backend)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "subadmin", cfg.ServiceName)
	assert.Equal(t, int64(1), cfg.DefaultAgentID)
	assert.Equal(t, ListingSubscriptions, cfg.ListingMode)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.MigrateOnStart)
	assert.Nil(t, cfg.CORSOrigins)
	assert.Equal(t, "identity.json", filepath.Base(cfg.IdentityFile))
}

func TestLoad_AllEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("GATEWAY_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/subadmin")
	t.Setenv("MIGRATE_ON_START", "true")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("HTTP_LISTEN_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("DEFAULT_AGENT_ID", "4")
	t.Setenv("LISTING_MODE", "agent-users")
	t.Setenv("IDENTITY_FILE", "/tmp/id.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, model.BackendPostgres, cfg.Backend)
	assert.Equal(t, "postgres://localhost/subadmin", cfg.DatabaseURL)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, ":9090", cfg.HTTPListenAddr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, int64(4), cfg.DefaultAgentID)
	assert.Equal(t, ListingAgentUsers, cfg.ListingMode)
	assert.Equal(t, "/tmp/id.json", cfg.IdentityFile)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("SUPABASE_URL=https://proj.supabase.co\nSUPABASE_ANON_KEY=anon\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("SUPABASE_URL")
		os.Unsetenv("SUPABASE_ANON_KEY")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://proj.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, "anon", cfg.SupabaseAnonKey)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_AGENT_ID", "one")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_AGENT_ID")

	t.Setenv("DEFAULT_AGENT_ID", "1")
	t.Setenv("SESSION_TTL", "forever")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_TTL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backend:         model.BackendSupabase,
			SupabaseURL:     "https://proj.supabase.co",
			SupabaseAnonKey: "anon",
			DefaultAgentID:  1,
			ListingMode:     ListingSubscriptions,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid supabase", func(c *Config) {}, ""},
		{"missing supabase keys", func(c *Config) { c.SupabaseURL, c.SupabaseAnonKey = "", "" }, "SUPABASE_URL, SUPABASE_ANON_KEY"},
		{"postgres without url", func(c *Config) { c.Backend = model.BackendPostgres }, "DATABASE_URL"},
		{"unknown backend", func(c *Config) { c.Backend = "mysql" }, "GATEWAY_BACKEND"},
		{"bad listing mode", func(c *Config) { c.ListingMode = "all" }, "LISTING_MODE"},
		{"bad agent", func(c *Config) { c.DefaultAgentID = 0 }, "DEFAULT_AGENT_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
