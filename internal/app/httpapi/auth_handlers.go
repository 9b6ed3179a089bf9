package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pulsewire/pulse/internal/app/accounts"
	"github.com/pulsewire/pulse/internal/app/auth"
	"github.com/pulsewire/pulse/internal/app/tickets"
	"github.com/pulsewire/pulse/internal/pulseerr"
)

type authHandlers struct {
	accounts *accounts.Service
	tokens   *auth.TokenManager
	tickets  *tickets.Authenticator
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *authHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pulseerr.ValidationError("body", "invalid JSON"))
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		writeError(w, pulseerr.ValidationError("email/password", "email required, password must be at least 8 chars"))
		return
	}

	u, err := h.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": u.ID, "email": u.Email})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *authHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, pulseerr.ValidationError("body", "invalid JSON"))
		return
	}

	u, pair, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":       u.ID,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *authHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := cookieOrBody(r, "refresh_token")
	if refreshToken == "" {
		writeError(w, pulseerr.Unauthorized(""))
		return
	}

	pair, err := h.accounts.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *authHandlers) logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFrom(r.Context())

	refreshJTI := ""
	if c, err := r.Cookie("refresh_token"); err == nil {
		if claims, verr := h.tokens.Validate(c.Value, auth.TokenRefresh); verr == nil {
			refreshJTI = claims.ID
		}
	}

	_ = h.accounts.Logout(r.Context(), userID, refreshJTI)
	clearTokenCookies(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (h *authHandlers) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, pulseerr.Unauthorized(""))
		return
	}
	u, err := h.accounts.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": u.ID, "email": u.Email})
}

func (h *authHandlers) wsTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeError(w, pulseerr.Unauthorized(""))
		return
	}
	ticket, err := h.tickets.Issue(r.Context(), userID)
	if err != nil {
		writeError(w, pulseerr.Internal("issue ticket", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ticket": ticket})
}

func setTokenCookies(w http.ResponseWriter, pair accounts.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name: "access_token", Value: pair.AccessToken, Path: "/",
		HttpOnly: true, Secure: true, SameSite: http.SameSiteLaxMode, Expires: pair.AccessExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name: "refresh_token", Value: pair.RefreshToken, Path: "/",
		HttpOnly: true, Secure: true, SameSite: http.SameSiteLaxMode, Expires: pair.RefreshExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name: "logged_in", Value: "true", Path: "/",
		HttpOnly: false, Secure: true, SameSite: http.SameSiteLaxMode, Expires: pair.RefreshExpiresAt,
	})
}

func clearTokenCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	for _, name := range []string{"access_token", "refresh_token", "logged_in"} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", HttpOnly: name != "logged_in", Expires: expired, MaxAge: -1})
	}
}

func cookieOrBody(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		return c.Value
	}
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		return body[name]
	}
	return ""
}
