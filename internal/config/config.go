package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/edvin/subadmin/internal/model"
)

// Listing modes accepted by LISTING_MODE.
const (
	ListingSubscriptions = "subscriptions"
	ListingAgentUsers    = "agent-users"
)

type Config struct {
	Backend         string
	SupabaseURL     string
	SupabaseAnonKey string
	SupabaseSchema  string
	DatabaseURL     string
	MigrateOnStart  bool
	SessionTTL      time.Duration

	HTTPListenAddr string
	LogLevel       string
	CORSOrigins    []string
	ServiceName    string

	DefaultAgentID int64
	ListingMode    string
	IdentityFile   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	agentID, err := strconv.ParseInt(getEnv("DEFAULT_AGENT_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse DEFAULT_AGENT_ID: %w", err)
	}
	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "12h"))
	if err != nil {
		return nil, fmt.Errorf("parse SESSION_TTL: %w", err)
	}

	cfg := &Config{
		Backend:         getEnv("GATEWAY_BACKEND", model.BackendSupabase),
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseSchema:  getEnv("SUPABASE_SCHEMA", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MigrateOnStart:  getEnv("MIGRATE_ON_START", "") == "true",
		SessionTTL:      sessionTTL,
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", "127.0.0.1:8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "")),
		ServiceName:     getEnv("SERVICE_NAME", "subadmin"),
		DefaultAgentID:  agentID,
		ListingMode:     getEnv("LISTING_MODE", ListingSubscriptions),
		IdentityFile:    getEnv("IDENTITY_FILE", defaultIdentityFile()),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	switch c.Backend {
	case model.BackendSupabase:
		if c.SupabaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.SupabaseAnonKey == "" {
			missing = append(missing, "SUPABASE_ANON_KEY")
		}
	case model.BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		return fmt.Errorf("GATEWAY_BACKEND must be %q or %q, got %q", model.BackendSupabase, model.BackendPostgres, c.Backend)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.ListingMode != ListingSubscriptions && c.ListingMode != ListingAgentUsers {
		return fmt.Errorf("LISTING_MODE must be %q or %q, got %q", ListingSubscriptions, ListingAgentUsers, c.ListingMode)
	}
	if c.DefaultAgentID <= 0 {
		return fmt.Errorf("DEFAULT_AGENT_ID must be positive")
	}
	return nil
}

func defaultIdentityFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "identity.json"
	}
	return filepath.Join(dir, "subadmin", "identity.json")
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
