package handler

import (
	"net/http"

	"github.com/edvin/subadmin/internal/api/request"
	"github.com/edvin/subadmin/internal/api/response"
	"github.com/edvin/subadmin/internal/core"
)

type Auth struct {
	identity *core.IdentityResolver
}

func NewAuth(identity *core.IdentityResolver) *Auth {
	return &Auth{identity: identity}
}

// Login authenticates the operator, trying the managed session first and the
// user directory second.
//
//	@Summary      Log in
//	@Description  Authenticate the operator. The resulting identity is process-wide.
//	@Tags         Authentication
//	@Accept       json
//	@Produce      json
//	@Param        body  body      request.Login  true  "Login credentials"
//	@Success      200   {object}  model.Identity
//	@Failure      400   {object}  response.ErrorResponse
//	@Failure      401   {object}  response.ErrorResponse
//	@Router       /auth/login [post]
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req request.Login
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, identity)
}

// Logout ends the managed session and forgets the stored identity.
//
//	@Summary      Log out
//	@Tags         Authentication
//	@Success      204
//	@Failure      500  {object}  response.ErrorResponse
//	@Router       /auth/logout [post]
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.Logout(r.Context()); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current identity.
//
//	@Summary      Current identity
//	@Tags         Authentication
//	@Produce      json
//	@Success      200  {object}  model.Identity
//	@Failure      401  {object}  response.ErrorResponse
//	@Router       /auth/me [get]
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	identity := h.identity.GetCurrentIdentity(r.Context())
	if identity == nil {
		response.WriteError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	response.WriteJSON(w, http.StatusOK, identity)
}
