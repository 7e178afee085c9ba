package httpapi

import (
	"encoding/json"
	"net/http"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin exchanges credentials for an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	tokens, user, err := s.auth.LoginWithIP(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "logged in", map[string]any{
		"token":     tokens.AccessToken,
		"expiresAt": tokens.ExpiresAt,
		"user":      toUserDTO(&user),
	})
}

// handleCaptcha issues a fresh arithmetic challenge. The answer stays
// server-side.
func (s *Server) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	ch, err := s.captcha.Generate(r.Context())
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, "", map[string]string{"captchaId": ch.ID, "svg": ch.SVG})
}
