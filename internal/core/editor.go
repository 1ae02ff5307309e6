package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

// SubscriptionKey addresses one subscription, by id or by (user, agent) pair.
type SubscriptionKey struct {
	ID      int64
	UserID  int64
	AgentID int64
}

func (k SubscriptionKey) filters() []gateway.Filter {
	if k.ID != 0 {
		return []gateway.Filter{gateway.Eq("id", k.ID)}
	}
	return []gateway.Filter{gateway.Eq("user_id", k.UserID), gateway.Eq("agent_id", k.AgentID)}
}

func (k SubscriptionKey) validate() error {
	if k.ID < 0 {
		return &ValidationError{Field: "id", Message: "must be positive"}
	}
	if k.ID == 0 && (k.UserID <= 0 || k.AgentID <= 0) {
		return &ValidationError{Field: "key", Message: "an id or both user_id and agent_id are required"}
	}
	return nil
}

// SubscriptionPatch is a partial edit. Nil fields are left untouched; empty
// strings clear the field.
type SubscriptionPatch struct {
	Activation  *bool   `json:"activation,omitempty"`
	Status      *string `json:"status,omitempty"`
	Email       *string `json:"email,omitempty"`
	YearlyStart *string `json:"yearly_start,omitempty"`
	YearlyEnd   *string `json:"yearly_end,omitempty"`
	// UserIdentificator is written to the owning user, in a separate write.
	UserIdentificator *string `json:"user_identificator,omitempty"`
	// UserID names the owning user when the key is a subscription id.
	UserID int64 `json:"user_id,omitempty"`
}

// subscriptionColumns renders the subscription side of the patch.
func (p SubscriptionPatch) subscriptionColumns() (map[string]any, error) {
	cols := make(map[string]any)
	if p.Activation != nil {
		cols["activation"] = *p.Activation
	}
	if p.Status != nil {
		cols["status"] = normalizeText(*p.Status)
	}
	if p.Email != nil {
		cols["email"] = normalizeText(*p.Email)
	}
	if p.YearlyStart != nil {
		v, err := normalizeDate("yearly_start", *p.YearlyStart)
		if err != nil {
			return nil, err
		}
		cols["yearly_start"] = v
	}
	if p.YearlyEnd != nil {
		v, err := normalizeDate("yearly_end", *p.YearlyEnd)
		if err != nil {
			return nil, err
		}
		cols["yearly_end"] = v
	}
	return cols, nil
}

type EditorService struct {
	gw     gateway.Gateway
	logger zerolog.Logger
	now    func() time.Time
}

func NewEditorService(gw gateway.Gateway, logger zerolog.Logger) *EditorService {
	return &EditorService{gw: gw, logger: logger, now: time.Now}
}

// Update applies patch to the subscription at key and, when the patch sets
// a user identifier, to the owning user. The two writes are independent:
// either may succeed while the other fails, and nothing is rolled back.
func (s *EditorService) Update(ctx context.Context, key SubscriptionKey, patch SubscriptionPatch) error {
	if err := key.validate(); err != nil {
		return err
	}
	cols, err := patch.subscriptionColumns()
	if err != nil {
		return err
	}

	userID := key.UserID
	if patch.UserID != 0 {
		userID = patch.UserID
	}
	if patch.UserIdentificator != nil && userID <= 0 {
		return &ValidationError{Field: "user_id", Message: "required to update user_identificator"}
	}
	if len(cols) == 0 && patch.UserIdentificator == nil {
		return &ValidationError{Field: "patch", Message: "no fields to update"}
	}

	now := s.now().UTC().Format(time.RFC3339)
	var (
		wg              sync.WaitGroup
		subErr, userErr error
	)
	if len(cols) > 0 {
		cols["updated_at"] = now
		wg.Add(1)
		go func() {
			defer wg.Done()
			subErr = s.gw.Update(ctx, model.RelationSubscription, cols, key.filters()...)
		}()
	}
	if patch.UserIdentificator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userErr = s.gw.Update(ctx, model.RelationUser,
				map[string]any{"user_identificator": *patch.UserIdentificator, "updated_at": now},
				gateway.Eq("id", userID))
		}()
	}
	wg.Wait()

	if subErr != nil || userErr != nil {
		err := &UpdateError{Subscription: subErr, User: userErr}
		s.logger.Error().Err(err).Int64("subscription_id", key.ID).Int64("user_id", userID).Msg("update subscription")
		return err
	}
	s.logger.Info().Int64("subscription_id", key.ID).Int64("user_id", userID).Int64("agent_id", key.AgentID).Msg("subscription updated")
	return nil
}
