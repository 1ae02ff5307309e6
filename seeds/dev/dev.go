package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/edvin/subadmin/internal/crypto"
	"github.com/edvin/subadmin/internal/db"
)

type seedFile struct {
	Admins []adminEntry `yaml:"admins"`
	Agents []agentEntry `yaml:"agents"`
	Steps  []stepEntry  `yaml:"steps"`
	Users  []userEntry  `yaml:"users"`
}

type adminEntry struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type agentEntry struct {
	ID        int64  `yaml:"id"`
	AgentName string `yaml:"agent_name"`
	AgentType string `yaml:"agent_type"`
}

type stepEntry struct {
	ID     int64   `yaml:"id"`
	Name   string  `yaml:"name"`
	Prompt *string `yaml:"prompt"`
}

type userEntry struct {
	ID                int64       `yaml:"id"`
	UserName          string      `yaml:"user_name"`
	Email             *string     `yaml:"email"`
	UserIdentificator string      `yaml:"user_identificator"`
	Agents            []linkEntry `yaml:"agents"`
}

type linkEntry struct {
	AgentID      int64              `yaml:"agent_id"`
	StepID       *int64             `yaml:"step_id"`
	Origin       *string            `yaml:"origin"`
	Subscription *subscriptionEntry `yaml:"subscription"`
}

type subscriptionEntry struct {
	Activation  bool    `yaml:"activation"`
	Status      *string `yaml:"status"`
	Email       *string `yaml:"email"`
	YearlyStart *string `yaml:"yearly_start"`
	YearlyEnd   *string `yaml:"yearly_end"`
}

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("Applying migrations...")
	if err := db.RunMigrations(databaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	seed, err := loadSeed()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load seed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Seeding subadmin database...")
	if err := apply(ctx, pool, seed); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Seed complete!")
	for _, a := range seed.Admins {
		fmt.Printf("  Managed login: %s / %s\n", a.Email, a.Password)
	}
	for _, u := range seed.Users {
		if u.Email != nil {
			fmt.Printf("  Directory login: %s\n", *u.Email)
		}
	}
}

// loadSeed reads dev.yaml next to this source file so it works regardless of cwd.
func loadSeed() (*seedFile, error) {
	_, thisFile, _, _ := runtime.Caller(0)
	data, err := os.ReadFile(filepath.Join(filepath.Dir(thisFile), "dev.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read dev.yaml: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse dev.yaml: %w", err)
	}
	return &seed, nil
}

func apply(ctx context.Context, pool *pgxpool.Pool, seed *seedFile) error {
	for _, a := range seed.Agents {
		fmt.Printf("  Upserting agent %d (%s)\n", a.ID, a.AgentName)
		_, err := pool.Exec(ctx,
			`INSERT INTO agent (id, agent_name, agent_type) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET agent_name = EXCLUDED.agent_name, agent_type = EXCLUDED.agent_type`,
			a.ID, a.AgentName, a.AgentType)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	for _, s := range seed.Steps {
		fmt.Printf("  Upserting step %d (%s)\n", s.ID, s.Name)
		_, err := pool.Exec(ctx,
			`INSERT INTO agent_step (id, name, prompt) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, prompt = EXCLUDED.prompt`,
			s.ID, s.Name, s.Prompt)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", s.ID, err)
		}
	}

	for _, u := range seed.Users {
		fmt.Printf("  Upserting user %d (%s)\n", u.ID, u.UserName)
		_, err := pool.Exec(ctx,
			`INSERT INTO "user" (id, user_name, email, user_identificator) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET user_name = EXCLUDED.user_name, email = EXCLUDED.email,
			   user_identificator = EXCLUDED.user_identificator`,
			u.ID, u.UserName, u.Email, u.UserIdentificator)
		if err != nil {
			return fmt.Errorf("insert user %d: %w", u.ID, err)
		}

		for _, l := range u.Agents {
			_, err := pool.Exec(ctx,
				`INSERT INTO agent_user (agent_id, user_id, step_id, origin, last_interaction) VALUES ($1, $2, $3, $4, now())
				 ON CONFLICT (agent_id, user_id) DO UPDATE SET step_id = EXCLUDED.step_id, origin = EXCLUDED.origin`,
				l.AgentID, u.ID, l.StepID, l.Origin)
			if err != nil {
				return fmt.Errorf("link user %d to agent %d: %w", u.ID, l.AgentID, err)
			}
			if l.Subscription == nil {
				continue
			}
			s := l.Subscription
			_, err = pool.Exec(ctx,
				`INSERT INTO subscription (agent_id, user_id, activation, status, email, yearly_start, yearly_end)
				 VALUES ($1, $2, $3, $4, $5, $6::date, $7::date)
				 ON CONFLICT (user_id, agent_id) DO UPDATE SET activation = EXCLUDED.activation, status = EXCLUDED.status,
				   email = EXCLUDED.email, yearly_start = EXCLUDED.yearly_start, yearly_end = EXCLUDED.yearly_end`,
				l.AgentID, u.ID, s.Activation, s.Status, s.Email, s.YearlyStart, s.YearlyEnd)
			if err != nil {
				return fmt.Errorf("subscribe user %d to agent %d: %w", u.ID, l.AgentID, err)
			}
		}
	}

	// Explicit ids leave the sequences behind.
	for _, table := range []string{`"user"`, "agent", "agent_step"} {
		_, err := pool.Exec(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), coalesce((SELECT max(id) FROM %[1]s), 1))`, table))
		if err != nil {
			return fmt.Errorf("reset %s sequence: %w", table, err)
		}
	}

	for _, a := range seed.Admins {
		fmt.Printf("  Upserting admin account %s\n", a.Email)
		hash, err := crypto.HashPassword(a.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		_, err = pool.Exec(ctx,
			`INSERT INTO admin_account (email, password_hash) VALUES ($1, $2)
			 ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash`,
			a.Email, hash)
		if err != nil {
			return fmt.Errorf("insert admin %s: %w", a.Email, err)
		}
	}
	return nil
}
