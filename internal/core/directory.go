package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

// AgentUserPatch is a partial edit of an agent_user link. Nil fields are
// left untouched.
type AgentUserPatch struct {
	LastInteraction *string          `json:"last_interaction,omitempty"`
	Origin          *string          `json:"origin,omitempty"`
	Tags            *json.RawMessage `json:"tags,omitempty"`
	CustomData      *json.RawMessage `json:"custom_data,omitempty"`
	StepID          *int64           `json:"step_id,omitempty"`
}

// DirectoryService covers the supporting reads and writes of the admin:
// the user picker, agent-user details and agent steps.
type DirectoryService struct {
	gw     gateway.Gateway
	logger zerolog.Logger
	now    func() time.Time
}

func NewDirectoryService(gw gateway.Gateway, logger zerolog.Logger) *DirectoryService {
	return &DirectoryService{gw: gw, logger: logger, now: time.Now}
}

// ListUsers returns every user ordered by name, filtered by case-insensitive
// substring of the name when name is set.
func (s *DirectoryService) ListUsers(ctx context.Context, name string) ([]model.User, error) {
	var users []model.User
	err := s.gw.Select(ctx, gateway.Query{
		Relation: model.RelationUser,
		Order:    []gateway.Order{{Column: "user_name"}},
	}, &users)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return users, nil
	}
	filtered := make([]model.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.UserName), needle) {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

type agentUserDetailsRecord struct {
	model.AgentUser
	User      gateway.One[model.User]      `json:"user"`
	Agent     gateway.One[model.Agent]     `json:"agent"`
	AgentStep gateway.One[model.AgentStep] `json:"agent_step"`
}

// ListAgentUsers returns every agent_user link with its user, agent and step.
func (s *DirectoryService) ListAgentUsers(ctx context.Context) ([]model.AgentUserDetails, error) {
	var records []agentUserDetailsRecord
	err := s.gw.Select(ctx, gateway.Query{
		Relation: model.RelationAgentUser,
		Expand: []gateway.Expand{
			gateway.ExpandOn("user", model.RelationUser, "user_id"),
			gateway.ExpandOn("agent", model.RelationAgent, "agent_id"),
			gateway.ExpandOn("agent_step", model.RelationAgentStep, "step_id"),
		},
	}, &records)
	if err != nil {
		return nil, fmt.Errorf("list agent users: %w", err)
	}

	out := make([]model.AgentUserDetails, len(records))
	for i, r := range records {
		out[i] = model.AgentUserDetails{
			AgentUser: r.AgentUser,
			User:      r.User.Value,
			Agent:     r.Agent.Value,
			AgentStep: r.AgentStep.Value,
		}
	}
	return out, nil
}

// UpdateAgentUser applies patch to the link between agentID and userID.
func (s *DirectoryService) UpdateAgentUser(ctx context.Context, agentID, userID int64, patch AgentUserPatch) error {
	if agentID <= 0 || userID <= 0 {
		return &ValidationError{Field: "key", Message: "agent_id and user_id must be positive"}
	}

	cols := make(map[string]any)
	if patch.LastInteraction != nil {
		if v := strings.TrimSpace(*patch.LastInteraction); v == "" {
			cols["last_interaction"] = nil
		} else {
			ts, err := model.ParseTimestamp(v)
			if err != nil {
				return &ValidationError{Field: "last_interaction", Message: err.Error()}
			}
			cols["last_interaction"] = ts.Format(time.RFC3339)
		}
	}
	if patch.Origin != nil {
		cols["origin"] = normalizeText(*patch.Origin)
	}
	if patch.Tags != nil {
		cols["tags"] = rawOrNil(*patch.Tags)
	}
	if patch.CustomData != nil {
		cols["custom_data"] = rawOrNil(*patch.CustomData)
	}
	if patch.StepID != nil {
		cols["step_id"] = *patch.StepID
	}
	if len(cols) == 0 {
		return &ValidationError{Field: "patch", Message: "no fields to update"}
	}
	cols["updated_at"] = s.now().UTC().Format(time.RFC3339)

	if err := s.gw.Update(ctx, model.RelationAgentUser, cols,
		gateway.Eq("agent_id", agentID), gateway.Eq("user_id", userID)); err != nil {
		s.logger.Error().Err(err).Int64("agent_id", agentID).Int64("user_id", userID).Msg("update agent user")
		return fmt.Errorf("update agent user: %w", err)
	}
	return nil
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// ListAgentSteps returns the steps ordered by id. A role without access to
// the steps gets an empty list rather than an error.
func (s *DirectoryService) ListAgentSteps(ctx context.Context) ([]model.AgentStep, error) {
	var steps []model.AgentStep
	err := s.gw.Select(ctx, gateway.Query{
		Relation: model.RelationAgentStep,
		Order:    []gateway.Order{{Column: "id"}},
	}, &steps)
	if errors.Is(err, gateway.ErrPermissionDenied) {
		s.logger.Warn().Err(err).Msg("agent steps not readable, returning none")
		return []model.AgentStep{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list agent steps: %w", err)
	}
	return steps, nil
}

// TestConnection reports whether the gateway answers.
func (s *DirectoryService) TestConnection(ctx context.Context) bool {
	if err := s.gw.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("connection test failed")
		return false
	}
	return true
}
