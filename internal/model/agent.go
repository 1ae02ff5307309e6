package model

import "encoding/json"

type Agent struct {
	ID         int64      `json:"id"`
	AgentName  string     `json:"agent_name"`
	AgentType  string     `json:"agent_type"`
	WorkflowID *string    `json:"workflow_id,omitempty"`
	CreatedAt  *Timestamp `json:"created_at,omitempty"`
	UpdatedAt  *Timestamp `json:"updated_at,omitempty"`
}

type AgentStep struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Prompt *string `json:"prompt,omitempty"`
}

// AgentUser links a user to an agent it has interacted with.
type AgentUser struct {
	AgentID         int64           `json:"agent_id"`
	UserID          int64           `json:"user_id"`
	LastInteraction *Timestamp      `json:"last_interaction,omitempty"`
	Origin          *string         `json:"origin,omitempty"`
	Tags            json.RawMessage `json:"tags,omitempty"`
	CustomData      json.RawMessage `json:"custom_data,omitempty"`
	StepID          *int64          `json:"step_id,omitempty"`
	CreatedAt       *Timestamp      `json:"created_at,omitempty"`
	UpdatedAt       *Timestamp      `json:"updated_at,omitempty"`
}

// AgentUserDetails is an agent_user row with its user, agent and current step expanded.
type AgentUserDetails struct {
	AgentUser
	User      *User      `json:"user"`
	Agent     *Agent     `json:"agent"`
	AgentStep *AgentStep `json:"agent_step"`
}
