package request

import (
	"encoding/json"

	"github.com/edvin/subadmin/internal/core"
)

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

type CreateSubscription struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	AgentID     int64  `json:"agent_id" validate:"omitempty,gt=0"`
	Activation  *bool  `json:"activation"`
	Status      string `json:"status" validate:"max=255"`
	Email       string `json:"email" validate:"omitempty,email"`
	YearlyStart string `json:"yearly_start"`
	YearlyEnd   string `json:"yearly_end"`
}

// Subscription converts the request, applying defaultAgent when agent_id is omitted.
func (c CreateSubscription) Subscription(defaultAgent int64) core.NewSubscription {
	agentID := c.AgentID
	if agentID == 0 {
		agentID = defaultAgent
	}
	return core.NewSubscription{
		UserID:      c.UserID,
		AgentID:     agentID,
		Activation:  c.Activation,
		Status:      c.Status,
		Email:       c.Email,
		YearlyStart: c.YearlyStart,
		YearlyEnd:   c.YearlyEnd,
	}
}

// UpdateSubscription is a partial edit; omitted fields stay untouched and
// empty strings clear them.
type UpdateSubscription struct {
	Activation        *bool   `json:"activation"`
	Status            *string `json:"status" validate:"omitempty,max=255"`
	Email             *string `json:"email"`
	YearlyStart       *string `json:"yearly_start"`
	YearlyEnd         *string `json:"yearly_end"`
	UserIdentificator *string `json:"user_identificator" validate:"omitempty,max=255"`
	UserID            int64   `json:"user_id" validate:"omitempty,gt=0"`
}

func (u UpdateSubscription) Patch() core.SubscriptionPatch {
	return core.SubscriptionPatch{
		Activation:        u.Activation,
		Status:            u.Status,
		Email:             u.Email,
		YearlyStart:       u.YearlyStart,
		YearlyEnd:         u.YearlyEnd,
		UserIdentificator: u.UserIdentificator,
		UserID:            u.UserID,
	}
}

type UpdateAgentUser struct {
	LastInteraction *string          `json:"last_interaction"`
	Origin          *string          `json:"origin" validate:"omitempty,max=255"`
	Tags            *json.RawMessage `json:"tags"`
	CustomData      *json.RawMessage `json:"custom_data"`
	StepID          *int64           `json:"step_id" validate:"omitempty,gt=0"`
}

func (u UpdateAgentUser) Patch() core.AgentUserPatch {
	return core.AgentUserPatch{
		LastInteraction: u.LastInteraction,
		Origin:          u.Origin,
		Tags:            u.Tags,
		CustomData:      u.CustomData,
		StepID:          u.StepID,
	}
}
