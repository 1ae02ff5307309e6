package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/subadmin/internal/api/request"
	"github.com/edvin/subadmin/internal/api/response"
	"github.com/edvin/subadmin/internal/core"
)

type Directory struct {
	svc *core.DirectoryService
}

func NewDirectory(svc *core.DirectoryService) *Directory {
	return &Directory{svc: svc}
}

// ListUsers returns users ordered by name.
//
//	@Summary      List users
//	@Tags         Directory
//	@Produce      json
//	@Param        name  query     string  false  "Case-insensitive user name filter"
//	@Success      200   {object}  response.ListResponse
//	@Failure      401   {object}  response.ErrorResponse
//	@Router       /api/v1/users [get]
func (h *Directory) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteList(w, users)
}

// ListAgentUsers returns agent-user links with user, agent and step expanded.
//
//	@Summary      List agent users
//	@Tags         Directory
//	@Produce      json
//	@Success      200  {object}  response.ListResponse
//	@Failure      401  {object}  response.ErrorResponse
//	@Router       /api/v1/agent-users [get]
func (h *Directory) ListAgentUsers(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.ListAgentUsers(r.Context())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteList(w, links)
}

// UpdateAgentUser edits the link between an agent and a user.
//
//	@Summary      Update agent user
//	@Tags         Directory
//	@Accept       json
//	@Param        agentID  path  int                      true  "Agent ID"
//	@Param        userID   path  int                      true  "User ID"
//	@Param        body     body  request.UpdateAgentUser  true  "Fields to change"
//	@Success      204
//	@Failure      400      {object}  response.ErrorResponse
//	@Failure      401      {object}  response.ErrorResponse
//	@Router       /api/v1/agents/{agentID}/users/{userID} [patch]
func (h *Directory) UpdateAgentUser(w http.ResponseWriter, r *http.Request) {
	agentID, userID, ok := agentUserParams(w, r)
	if !ok {
		return
	}

	var req request.UpdateAgentUser
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.UpdateAgentUser(r.Context(), agentID, userID, req.Patch()); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	writeLog(r).Int64("agent_id", agentID).Int64("user_id", userID).Msg("agent user updated")
	w.WriteHeader(http.StatusNoContent)
}

// ListAgentSteps returns the workflow steps agents can be in.
//
//	@Summary      List agent steps
//	@Tags         Directory
//	@Produce      json
//	@Success      200  {object}  response.ListResponse
//	@Failure      401  {object}  response.ErrorResponse
//	@Router       /api/v1/agent-steps [get]
func (h *Directory) ListAgentSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := h.svc.ListAgentSteps(r.Context())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteList(w, steps)
}

// agentUserParams reads the {agentID} and {userID} path parameters or writes a 400.
func agentUserParams(w http.ResponseWriter, r *http.Request) (agentID, userID int64, ok bool) {
	agentID, err := request.RequireID("agent id", chi.URLParam(r, "agentID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	userID, err = request.RequireID("user id", chi.URLParam(r, "userID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return agentID, userID, true
}
