package handlers

import (
	"net/http"

	"github.com/diewo77/conventions/auth"
	"github.com/diewo77/conventions/httpx"
)

// SessionHandler reports, opens and ends operator sessions. Tokens are minted
// out of band with `conventionsctl token`; Login trades one for a cookie.
type SessionHandler struct {
	signer *auth.Signer
}

func NewSessionHandler(signer *auth.Signer) *SessionHandler {
	return &SessionHandler{signer: signer}
}

// Whoami returns the acting operator, or 401.
func (h *SessionHandler) Whoami(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"actor": actor})
}

// Login sets a fresh session cookie for the actor of a header token, so a
// browser can use the API after an operator pastes the token once.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	h.signer.CreateSession(w, actor)
	httpx.JSON(w, http.StatusOK, map[string]string{"actor": actor})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
