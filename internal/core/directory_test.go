package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/gateway/gatewaytest"
	"github.com/edvin/subadmin/internal/model"
)

func newDirectory(gw gateway.Gateway) *DirectoryService {
	s := NewDirectoryService(gw, zerolog.Nop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestDirectoryService_ListUsers(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	s := newDirectory(gw)
	ctx := context.Background()

	gw.On("Select", ctx, mock.MatchedBy(func(q gateway.Query) bool {
		return q.Relation == model.RelationUser && len(q.Order) == 1 && q.Order[0].Column == "user_name"
	}), mock.Anything).Return(`[{"id":7,"user_name":"Ana"},{"id":2,"user_name":"Bob"},{"id":3,"user_name":"Dana"}]`, nil)

	users, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, users, 3)

	users, err = s.ListUsers(ctx, "AN")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ana", users[0].UserName)
	assert.Equal(t, "Dana", users[1].UserName)
}

func TestDirectoryService_ListUsers_Error(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	gw.On("Select", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom"))

	_, err := newDirectory(gw).ListUsers(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, "list users: boom", err.Error())
}

func TestDirectoryService_ListAgentUsers(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	s := newDirectory(gw)
	ctx := context.Background()

	gw.On("Select", ctx, mock.MatchedBy(func(q gateway.Query) bool {
		return q.Relation == model.RelationAgentUser && len(q.Expand) == 3 &&
			q.Expand[2].Key() == "agent_step" && q.Expand[2].On[0].Local == "step_id"
	}), mock.Anything).Return(`[
		{"agent_id":1,"user_id":7,"step_id":2,"tags":["vip"],
		 "user":{"id":7,"user_name":"Ana"},"agent":{"id":1,"agent_name":"Concierge"},"agent_step":{"id":2,"name":"Onboarding"}},
		{"agent_id":1,"user_id":8,"user":null,"agent":null,"agent_step":null}
	]`, nil)

	details, err := s.ListAgentUsers(ctx)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "Ana", details[0].User.UserName)
	assert.Equal(t, "Concierge", details[0].Agent.AgentName)
	assert.Equal(t, "Onboarding", details[0].AgentStep.Name)
	assert.JSONEq(t, `["vip"]`, string(details[0].Tags))
	assert.Nil(t, details[1].User)
	assert.Nil(t, details[1].AgentStep)
}

func TestDirectoryService_UpdateAgentUser(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	s := newDirectory(gw)
	ctx := context.Background()

	tags := json.RawMessage(`["vip"]`)
	nullData := json.RawMessage(`null`)
	step := int64(3)
	gw.On("Update", ctx, model.RelationAgentUser, map[string]any{
		"last_interaction": "2024-03-01T10:00:00Z",
		"origin":           nil,
		"tags":             tags,
		"custom_data":      nil,
		"step_id":          int64(3),
		"updated_at":       "2024-02-01T09:30:00Z",
	}, []gateway.Filter{gateway.Eq("agent_id", int64(1)), gateway.Eq("user_id", int64(7))}).Return(nil).Once()

	err := s.UpdateAgentUser(ctx, 1, 7, AgentUserPatch{
		LastInteraction: strPtr("2024-03-01 10:00:00"),
		Origin:          strPtr(""),
		Tags:            &tags,
		CustomData:      &nullData,
		StepID:          &step,
	})
	require.NoError(t, err)
	gw.AssertExpectations(t)
}

func TestDirectoryService_UpdateAgentUser_Validation(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	s := newDirectory(gw)
	ctx := context.Background()

	var vErr *ValidationError
	require.ErrorAs(t, s.UpdateAgentUser(ctx, 0, 7, AgentUserPatch{Origin: strPtr("web")}), &vErr)
	require.ErrorAs(t, s.UpdateAgentUser(ctx, 1, 7, AgentUserPatch{}), &vErr)
	require.ErrorAs(t, s.UpdateAgentUser(ctx, 1, 7, AgentUserPatch{LastInteraction: strPtr("yesterday")}), &vErr)
	assert.Equal(t, "last_interaction", vErr.Field)
	gw.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDirectoryService_ListAgentSteps(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	ctx := context.Background()
	gw.On("Select", ctx, gatewaytest.Relation(model.RelationAgentStep), mock.Anything).
		Return(`[{"id":1,"name":"Greeting"},{"id":2,"name":"Onboarding","prompt":"Ask for name"}]`, nil)

	steps, err := newDirectory(gw).ListAgentSteps(ctx)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "Ask for name", *steps[1].Prompt)
}

func TestDirectoryService_ListAgentSteps_PermissionDenied(t *testing.T) {
	gw := &gatewaytest.Gateway{}
	ctx := context.Background()
	gw.On("Select", ctx, gatewaytest.Relation(model.RelationAgentStep), mock.Anything).
		Return("", &gateway.Error{Status: 401, Code: gateway.CodePermissionDenied, Message: "permission denied for table agent_step"})

	steps, err := newDirectory(gw).ListAgentSteps(ctx)
	require.NoError(t, err)
	assert.NotNil(t, steps)
	assert.Empty(t, steps)
}

func TestDirectoryService_TestConnection(t *testing.T) {
	ctx := context.Background()

	ok := &gatewaytest.Gateway{}
	ok.On("Ping", ctx).Return(nil)
	assert.True(t, newDirectory(ok).TestConnection(ctx))

	down := &gatewaytest.Gateway{}
	down.On("Ping", ctx).Return(errors.New("unreachable"))
	assert.False(t, newDirectory(down).TestConnection(ctx))
}
