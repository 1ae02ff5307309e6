package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/subadmin/internal/gateway"
	"github.com/edvin/subadmin/internal/gateway/gatewaytest"
	"github.com/edvin/subadmin/internal/model"
)

func newDirectoryHandler() (*gatewaytest.Gateway, *Directory) {
	gw, svc := newTestServices()
	return gw, NewDirectory(svc.Directory)
}

func TestDirectory_ListUsers(t *testing.T) {
	gw, h := newDirectoryHandler()
	gw.On("Select", mock.Anything, gatewaytest.Relation(model.RelationUser), mock.Anything).
		Return(`[{"id":7,"user_name":"Ana"},{"id":2,"user_name":"Bob"}]`, nil)

	rec := httptest.NewRecorder()
	h.ListUsers(rec, newRequest("GET", "/api/v1/users?name=AN", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []model.User `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, int64(7), body.Items[0].ID)
}

func TestDirectory_ListUsers_Error(t *testing.T) {
	gw, h := newDirectoryHandler()
	gw.On("Select", mock.Anything, gatewaytest.Relation(model.RelationUser), mock.Anything).Return("", errors.New("boom"))

	rec := httptest.NewRecorder()
	h.ListUsers(rec, newRequest("GET", "/api/v1/users", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDirectory_ListAgentUsers(t *testing.T) {
	gw, h := newDirectoryHandler()
	gw.On("Select", mock.Anything, gatewaytest.Relation(model.RelationAgentUser), mock.Anything).
		Return(`[{"agent_id":1,"user_id":7,"user":{"id":7,"user_name":"Ana"},"agent":{"id":1,"agent_name":"Helper"},"agent_step":null}]`, nil)

	rec := httptest.NewRecorder()
	h.ListAgentUsers(rec, newRequest("GET", "/api/v1/agent-users", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []model.AgentUserDetails `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Ana", body.Items[0].User.UserName)
	assert.Equal(t, "Helper", body.Items[0].Agent.AgentName)
	assert.Nil(t, body.Items[0].AgentStep)
}

func TestDirectory_UpdateAgentUser(t *testing.T) {
	gw, h := newDirectoryHandler()
	gw.On("Update", mock.Anything, model.RelationAgentUser, mock.MatchedBy(func(patch map[string]any) bool {
		return patch["step_id"] == int64(3) && patch["origin"] == nil
	}), []gateway.Filter{gateway.Eq("agent_id", int64(1)), gateway.Eq("user_id", int64(7))}).Return(nil)

	r := newRequestRaw("PATCH", "/api/v1/agents/1/users/7", `{"step_id":3,"origin":""}`)
	r = withChiURLParams(r, map[string]string{"agentID": "1", "userID": "7"})
	rec := httptest.NewRecorder()
	h.UpdateAgentUser(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	gw.AssertExpectations(t)
}

func TestDirectory_UpdateAgentUser_BadPath(t *testing.T) {
	_, h := newDirectoryHandler()

	r := withChiURLParams(newRequestRaw("PATCH", "/api/v1/agents/1/users/x", `{}`), map[string]string{"agentID": "1", "userID": "x"})
	rec := httptest.NewRecorder()
	h.UpdateAgentUser(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "user id")
}

func TestDirectory_ListAgentSteps_PermissionDenied(t *testing.T) {
	gw, h := newDirectoryHandler()
	gw.On("Select", mock.Anything, gatewaytest.Relation(model.RelationAgentStep), mock.Anything).Return("", gateway.ErrPermissionDenied)

	rec := httptest.NewRecorder()
	h.ListAgentSteps(rec, newRequest("GET", "/api/v1/agent-steps", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}
