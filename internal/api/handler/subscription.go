package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/subadmin/internal/api/middleware"
	"github.com/edvin/subadmin/internal/api/request"
	"github.com/edvin/subadmin/internal/api/response"
	"github.com/edvin/subadmin/internal/core"
)

type Subscription struct {
	readModel    *core.ReadModel
	editor       *core.EditorService
	creator      *core.CreatorService
	defaultAgent int64
}

func NewSubscription(readModel *core.ReadModel, editor *core.EditorService, creator *core.CreatorService, defaultAgent int64) *Subscription {
	return &Subscription{
		readModel:    readModel,
		editor:       editor,
		creator:      creator,
		defaultAgent: defaultAgent,
	}
}

// List returns the flattened subscription rows.
//
//	@Summary      List subscriptions
//	@Description  Joined user and subscription rows. On a failed refresh the last good list is returned with a 502.
//	@Tags         Subscriptions
//	@Produce      json
//	@Param        mode      query     string  false  "subscriptions or agent-users"
//	@Param        agent_id  query     int     false  "Agent ID"
//	@Param        name      query     string  false  "Case-insensitive user name filter"
//	@Success      200       {object}  response.ListResponse
//	@Failure      400       {object}  response.ErrorResponse
//	@Failure      401       {object}  response.ErrorResponse
//	@Failure      502       {object}  response.ErrorResponse
//	@Router       /api/v1/subscriptions [get]
func (h *Subscription) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := core.ParseListingMode(q.Get("mode"))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	agentID, err := request.OptionalID("agent_id", q.Get("agent_id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.readModel.List(r.Context(), core.ListOptions{Mode: mode, AgentID: agentID, Name: q.Get("name")})
	if err != nil {
		var fetchErr *core.FetchError
		if errors.As(err, &fetchErr) && rows != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Int("stale_rows", len(rows)).Msg("serving last good subscription list")
			response.WriteJSON(w, http.StatusBadGateway, staleList{Items: rows, Error: err.Error()})
			return
		}
		response.WriteServiceError(w, err)
		return
	}

	response.WriteList(w, rows)
}

// staleList carries the last good rows alongside the refresh failure.
type staleList struct {
	Items any    `json:"items"`
	Error string `json:"error"`
}

// Create adds a subscription for an existing user.
//
//	@Summary      Create subscription
//	@Description  Fails with 409 when the user already holds a subscription to the agent. agent_id defaults to the configured agent.
//	@Tags         Subscriptions
//	@Accept       json
//	@Produce      json
//	@Param        body  body  request.CreateSubscription  true  "Subscription"
//	@Success      201
//	@Failure      400   {object}  response.ErrorResponse
//	@Failure      401   {object}  response.ErrorResponse
//	@Failure      409   {object}  response.ErrorResponse
//	@Failure      502   {object}  response.ErrorResponse
//	@Router       /api/v1/subscriptions [post]
func (h *Subscription) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSubscription
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := req.Subscription(h.defaultAgent)
	if err := h.creator.Create(r.Context(), in); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	writeLog(r).Int64("user_id", in.UserID).Int64("agent_id", in.AgentID).Msg("subscription created")

	w.WriteHeader(http.StatusCreated)
}

// Update edits a subscription addressed by its id.
//
//	@Summary      Update subscription
//	@Description  Partial edit. user_identificator is written to the owning user and requires user_id.
//	@Tags         Subscriptions
//	@Accept       json
//	@Produce      json
//	@Param        id    path  int                         true  "Subscription ID"
//	@Param        body  body  request.UpdateSubscription  true  "Fields to change"
//	@Success      204
//	@Failure      400   {object}  response.ErrorResponse
//	@Failure      401   {object}  response.ErrorResponse
//	@Failure      502   {object}  response.ErrorResponse
//	@Router       /api/v1/subscriptions/{id} [patch]
func (h *Subscription) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID("id", chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.update(w, r, core.SubscriptionKey{ID: id})
}

// UpdateByUser edits the subscription of a (user, agent) pair.
//
//	@Summary      Update subscription by user
//	@Tags         Subscriptions
//	@Accept       json
//	@Produce      json
//	@Param        agentID  path  int                         true  "Agent ID"
//	@Param        userID   path  int                         true  "User ID"
//	@Param        body     body  request.UpdateSubscription  true  "Fields to change"
//	@Success      204
//	@Failure      400      {object}  response.ErrorResponse
//	@Failure      401      {object}  response.ErrorResponse
//	@Failure      502      {object}  response.ErrorResponse
//	@Router       /api/v1/agents/{agentID}/users/{userID}/subscription [patch]
func (h *Subscription) UpdateByUser(w http.ResponseWriter, r *http.Request) {
	agentID, userID, ok := agentUserParams(w, r)
	if !ok {
		return
	}
	h.update(w, r, core.SubscriptionKey{UserID: userID, AgentID: agentID})
}

func (h *Subscription) update(w http.ResponseWriter, r *http.Request, key core.SubscriptionKey) {
	var req request.UpdateSubscription
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.editor.Update(r.Context(), key, req.Patch()); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	writeLog(r).Int64("subscription_id", key.ID).Int64("user_id", key.UserID).Int64("agent_id", key.AgentID).Msg("subscription updated")

	w.WriteHeader(http.StatusNoContent)
}

// writeLog starts an audit line for a successful write, attributed to the
// operator RequireIdentity resolved.
func writeLog(r *http.Request) *zerolog.Event {
	event := zerolog.Ctx(r.Context()).Info()
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		event = event.Str("operator", identity.Email).Str("identity_source", identity.Source)
	}
	return event
}
