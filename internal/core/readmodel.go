package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/model"
)

type ListingMode string

const (
	// ModeSubscriptions lists subscription rows with their owning user.
	ModeSubscriptions ListingMode = "subscriptions"
	// ModeAgentUsers lists every user linked to one agent, subscribed or not.
	ModeAgentUsers ListingMode = "agent-users"
)

// ParseListingMode accepts "" as the configured default.
func ParseListingMode(s string) (ListingMode, error) {
	switch ListingMode(s) {
	case "", ModeSubscriptions, ModeAgentUsers:
		return ListingMode(s), nil
	}
	return "", &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown listing mode %q", s)}
}

type ListOptions struct {
	Mode ListingMode
	// AgentID scopes the listing. Zero means every agent in ModeSubscriptions
	// and the configured agent in ModeAgentUsers.
	AgentID int64
	// Name filters rows by case-insensitive substring of the user name.
	Name string
}

// refreshTimeout bounds a shared fetch, which outlives the caller that started it.
const refreshTimeout = 30 * time.Second

// userColumns is the projection of the owning user in listings.
var userColumns = []string{"id", "user_name", "email", "user_identificator"}

type subscriptionRecord struct {
	model.Subscription
	User gateway.One[model.User] `json:"user"`
}

type agentUserRecord struct {
	model.AgentUser
	User         gateway.One[model.User]         `json:"user"`
	Subscription gateway.One[model.Subscription] `json:"subscription"`
}

// ReadModel assembles the flattened user + subscription listings.
type ReadModel struct {
	gw           gateway.Gateway
	logger       zerolog.Logger
	defaultMode  ListingMode
	defaultAgent int64

	group    singleflight.Group
	mu       sync.Mutex
	lastGood map[string][]model.SubscriptionRow
}

func NewReadModel(gw gateway.Gateway, logger zerolog.Logger, mode ListingMode, defaultAgent int64) *ReadModel {
	if mode == "" {
		mode = ModeSubscriptions
	}
	return &ReadModel{
		gw:           gw,
		logger:       logger,
		defaultMode:  mode,
		defaultAgent: defaultAgent,
		lastGood:     make(map[string][]model.SubscriptionRow),
	}
}

// List fetches the listing in one gateway call. When the fetch fails the last
// good rows of the same listing are returned together with a *FetchError.
func (m *ReadModel) List(ctx context.Context, opts ListOptions) ([]model.SubscriptionRow, error) {
	mode := opts.Mode
	if mode == "" {
		mode = m.defaultMode
	}
	agentID := opts.AgentID
	if agentID == 0 && mode == ModeAgentUsers {
		agentID = m.defaultAgent
	}
	key := fmt.Sprintf("%s/%d", mode, agentID)

	ch := m.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		rows, err := m.fetch(fetchCtx, mode, agentID)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.lastGood[key] = rows
		m.mu.Unlock()
		return rows, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return FilterByName(res.Val.([]model.SubscriptionRow), opts.Name), nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	m.logger.Error().Err(err).Str("mode", string(mode)).Int64("agent_id", agentID).Msg("list subscriptions")
	m.mu.Lock()
	stale := m.lastGood[key]
	m.mu.Unlock()
	return FilterByName(stale, opts.Name), &FetchError{Err: err}
}

func (m *ReadModel) fetch(ctx context.Context, mode ListingMode, agentID int64) ([]model.SubscriptionRow, error) {
	switch mode {
	case ModeSubscriptions:
		return m.fetchSubscriptions(ctx, agentID)
	case ModeAgentUsers:
		return m.fetchAgentUsers(ctx, agentID)
	}
	return nil, fmt.Errorf("unknown listing mode %q", mode)
}

func (m *ReadModel) fetchSubscriptions(ctx context.Context, agentID int64) ([]model.SubscriptionRow, error) {
	q := gateway.Query{
		Relation: model.RelationSubscription,
		Expand:   []gateway.Expand{gateway.ExpandOn("user", model.RelationUser, "user_id", userColumns...)},
	}
	if agentID != 0 {
		q.Filters = append(q.Filters, gateway.Eq("agent_id", agentID))
	}

	var records []subscriptionRecord
	if err := m.gw.Select(ctx, q, &records); err != nil {
		return nil, err
	}

	rows := make([]model.SubscriptionRow, 0, len(records))
	for i := range records {
		r := &records[i]
		rows = append(rows, flatten(r.UserID, r.AgentID, r.User.Value, &r.Subscription, nil))
	}
	return rows, nil
}

func (m *ReadModel) fetchAgentUsers(ctx context.Context, agentID int64) ([]model.SubscriptionRow, error) {
	q := gateway.Query{
		Relation: model.RelationAgentUser,
		Expand: []gateway.Expand{
			gateway.ExpandOn("user", model.RelationUser, "user_id", userColumns...),
			{
				Relation: model.RelationSubscription,
				On: []gateway.Join{
					{Local: "user_id", Foreign: "user_id"},
					{Local: "agent_id", Foreign: "agent_id"},
				},
			},
		},
		Filters: []gateway.Filter{gateway.Eq("agent_id", agentID)},
	}

	var records []agentUserRecord
	if err := m.gw.Select(ctx, q, &records); err != nil {
		return nil, err
	}

	rows := make([]model.SubscriptionRow, 0, len(records))
	for i := range records {
		r := &records[i]
		rows = append(rows, flatten(r.UserID, r.AgentID, r.User.Value, r.Subscription.Value, r.LastInteraction))
	}
	return rows, nil
}

// flatten builds the view row. A missing user leaves its fields empty; a
// missing subscription leaves activation false and its fields empty. The
// subscription's contact email wins over the user's email.
func flatten(userID, agentID int64, u *model.User, s *model.Subscription, lastInteraction *model.Timestamp) model.SubscriptionRow {
	row := model.SubscriptionRow{
		UserID:          userID,
		AgentID:         agentID,
		LastInteraction: lastInteraction.String(),
	}
	if u != nil {
		row.UserName = u.UserName
		row.UserIdentificator = u.UserIdentificator
		row.Email = u.EmailOrEmpty()
	}
	if s == nil {
		return row
	}

	row.SubscriptionID = s.ID
	row.Activation = s.Activation
	if s.Status != nil {
		row.Status = *s.Status
	}
	if s.Email != nil && *s.Email != "" {
		row.Email = *s.Email
	}
	row.YearlyStart = s.YearlyStart.Date()
	row.YearlyEnd = s.YearlyEnd.Date()
	row.CreatedAt = s.CreatedAt.String()
	row.UpdatedAt = s.UpdatedAt.String()
	return row
}

// FilterByName keeps rows whose user name contains name, ignoring case. It
// always returns a new slice; an empty name keeps every row.
func FilterByName(rows []model.SubscriptionRow, name string) []model.SubscriptionRow {
	if rows == nil {
		return nil
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	out := make([]model.SubscriptionRow, 0, len(rows))
	for _, r := range rows {
		if needle == "" || strings.Contains(strings.ToLower(r.UserName), needle) {
			out = append(out, r)
		}
	}
	return out
}
