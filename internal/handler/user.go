package handler

import (
	"log"
	"net/http"

	"valshop-api/internal/middleware"
	"valshop-api/pkg/apierror"
	"valshop-api/pkg/response"
)

// UserHandler serves the logged-in account.
type UserHandler struct {
	auth     Authenticator
	sessions *middleware.Sessions
}

// NewUserHandler creates a new user handler.
func NewUserHandler(auth Authenticator, sessions *middleware.Sessions) *UserHandler {
	return &UserHandler{auth: auth, sessions: sessions}
}

// Profile handles GET /api/user/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.EnsureAuthenticated(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		response.Error(w, apierror.Unauthorized(msgExpired))
		return
	}
	pub := user.Public()
	response.OK(w, response.Fields{
		"user": map[string]interface{}{
			"username":        pub.Username,
			"region":          pub.Region,
			"puuid":           pub.PUUID,
			"lastFetchedData": user.LastFetchedData,
		},
	})
}

// DeleteAccount handles DELETE /api/user/account
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteAccount(r.Context(), middleware.GetSessionID(r.Context())); err != nil {
		log.Printf("[UserHandler] Delete failed: %v", err)
		response.Error(w, apierror.InternalError(""))
		return
	}
	h.sessions.Clear(w)
	response.OK(w, nil)
}

// Region handles GET /api/user/region
func (h *UserHandler) Region(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.EnsureAuthenticated(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		response.Error(w, apierror.Unauthorized(msgExpired))
		return
	}
	response.OK(w, response.Fields{"region": user.Region})
}

// Refresh handles POST /api/user/refresh
func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.auth.Refresh(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil || !result.Authenticated() {
		if err != nil {
			log.Printf("[UserHandler] Refresh failed: %v", err)
		}
		response.Error(w, apierror.Unauthorized(msgRefreshFailed))
		return
	}
	response.OK(w, response.Fields{"user": result.User.Public()})
}
