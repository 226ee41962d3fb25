package handler

import (
	"net/http"
	"strings"

	"valshop-api/internal/middleware"
	"valshop-api/internal/service"
	"valshop-api/pkg/apierror"
	"valshop-api/pkg/response"
)

// AuthHandler handles login, second factor, cookie login and logout.
type AuthHandler struct {
	auth     Authenticator
	sessions *middleware.Sessions
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth Authenticator, sessions *middleware.Sessions) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
	}
}

// LoginRequest represents the request body for password login.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// SecondFactorRequest represents the request body for a 2FA code.
type SecondFactorRequest struct {
	Code       string `json:"code"`
	UserID     string `json:"userId"`
	RememberMe bool   `json:"rememberMe"`
}

// CookieLoginRequest represents the request body for cookie login.
type CookieLoginRequest struct {
	Cookies    string `json:"cookies"`
	RememberMe bool   `json:"rememberMe"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		response.Error(w, apierror.BadRequest("用户名和密码不能为空"))
		return
	}

	sessionID := h.sessions.Issue(w, r, req.RememberMe)

	result, err := h.auth.LoginWithPassword(r.Context(), sessionID, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		response.Error(w, loginError(err, msgLoginFailed))
		return
	}
	h.writeResult(w, result)
}

// SecondFactor handles POST /api/auth/2fa
func (h *AuthHandler) SecondFactor(w http.ResponseWriter, r *http.Request) {
	var req SecondFactorRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		response.Error(w, apierror.BadRequest("验证码不能为空"))
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	if sessionID == "" {
		sessionID = req.UserID
	}
	if sessionID == "" {
		response.Error(w, apierror.BadRequest(msgInvalidSess))
		return
	}
	sessionID = h.sessions.Issue(w, r.WithContext(middleware.WithSessionID(r.Context(), sessionID)), req.RememberMe)

	result, err := h.auth.SubmitSecondFactor(r.Context(), sessionID, strings.TrimSpace(req.Code))
	if err != nil {
		response.Error(w, loginError(err, msgCodeInvalid))
		return
	}
	h.writeResult(w, result)
}

// CookieLogin handles POST /api/auth/cookies
func (h *AuthHandler) CookieLogin(w http.ResponseWriter, r *http.Request) {
	var req CookieLoginRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Cookies) == "" {
		response.Error(w, apierror.BadRequest("Cookies不能为空"))
		return
	}

	sessionID := h.sessions.Issue(w, r, req.RememberMe)

	result, err := h.auth.LoginWithCookie(r.Context(), sessionID, req.Cookies)
	if err != nil {
		response.Error(w, loginError(err, msgCookieFailed))
		return
	}
	h.writeResult(w, result)
}

// Logout handles POST /api/auth/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.GetSessionID(r.Context())); err != nil {
		response.Error(w, apierror.InternalError(""))
		return
	}
	response.OK(w, nil)
}

// Check handles GET /api/auth/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	if sessionID == "" {
		response.Fail(w, response.Fields{"authenticated": false})
		return
	}

	user, err := h.auth.EnsureAuthenticated(r.Context(), sessionID)
	if err != nil {
		response.OK(w, response.Fields{"authenticated": false})
		return
	}
	response.OK(w, response.Fields{
		"authenticated": true,
		"user":          user.Public(),
	})
}

func (h *AuthHandler) writeResult(w http.ResponseWriter, result *service.AuthResult) {
	if result.MFA != nil {
		response.Fail(w, response.Fields{
			"mfa":    true,
			"method": result.MFA.Method,
			"email":  result.MFA.Email,
		})
		return
	}
	response.OK(w, response.Fields{"user": result.User.Public()})
}
