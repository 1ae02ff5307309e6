package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

// NewSubscription is the input of Create. Activation defaults to true.
type NewSubscription struct {
	UserID      int64  `json:"user_id"`
	AgentID     int64  `json:"agent_id"`
	Activation  *bool  `json:"activation,omitempty"`
	Status      string `json:"status,omitempty"`
	Email       string `json:"email,omitempty"`
	YearlyStart string `json:"yearly_start,omitempty"`
	YearlyEnd   string `json:"yearly_end,omitempty"`
}

func (n NewSubscription) record(now time.Time) (map[string]any, error) {
	start, err := normalizeDate("yearly_start", n.YearlyStart)
	if err != nil {
		return nil, err
	}
	end, err := normalizeDate("yearly_end", n.YearlyEnd)
	if err != nil {
		return nil, err
	}
	activation := true
	if n.Activation != nil {
		activation = *n.Activation
	}
	return map[string]any{
		"user_id":      n.UserID,
		"agent_id":     n.AgentID,
		"activation":   activation,
		"status":       normalizeText(n.Status),
		"email":        normalizeText(n.Email),
		"yearly_start": start,
		"yearly_end":   end,
		"created_at":   now.UTC().Format(time.RFC3339),
	}, nil
}

type CreatorService struct {
	gw     gateway.Gateway
	logger zerolog.Logger
	now    func() time.Time
}

func NewCreatorService(gw gateway.Gateway, logger zerolog.Logger) *CreatorService {
	return &CreatorService{gw: gw, logger: logger, now: time.Now}
}

// Create inserts a subscription after checking the (user, agent) pair has
// none. Concurrent creators can both pass the check; a unique violation on
// insert is reported as ErrDuplicateSubscription too.
func (s *CreatorService) Create(ctx context.Context, in NewSubscription) error {
	if in.UserID <= 0 {
		return &ValidationError{Field: "user_id", Message: "must be positive"}
	}
	if in.AgentID <= 0 {
		return &ValidationError{Field: "agent_id", Message: "must be positive"}
	}
	record, err := in.record(s.now())
	if err != nil {
		return err
	}

	var existing model.Subscription
	err = s.gw.Select(ctx, gateway.Query{
		Relation: model.RelationSubscription,
		Columns:  []string{"id"},
		Filters:  []gateway.Filter{gateway.Eq("user_id", in.UserID), gateway.Eq("agent_id", in.AgentID)},
		Single:   true,
	}, &existing)
	switch {
	case err == nil, errors.Is(err, gateway.ErrMultipleRows):
		return ErrDuplicateSubscription
	case errors.Is(err, gateway.ErrNotFound):
	default:
		lookupErr := &LookupError{Err: err}
		s.logger.Error().Err(lookupErr).Int64("user_id", in.UserID).Int64("agent_id", in.AgentID).Msg("create subscription")
		return lookupErr
	}

	if err := s.gw.Insert(ctx, model.RelationSubscription, record); err != nil {
		if errors.Is(err, gateway.ErrConflict) {
			return ErrDuplicateSubscription
		}
		s.logger.Error().Err(err).Int64("user_id", in.UserID).Int64("agent_id", in.AgentID).Msg("create subscription")
		return err
	}

	s.logger.Info().Int64("user_id", in.UserID).Int64("agent_id", in.AgentID).Msg("subscription created")
	return nil
}
