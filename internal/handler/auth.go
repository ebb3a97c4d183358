package handler

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/auth"
	"github.com/sakif/job-tracker/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler serves the /users routes: sign-up, sign-in and user lookup.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin   → local accounts
//   - HandleGoogleLogin              → sign in with a Google ID token
//   - HandleGoogleRedirect/Callback  → server-side Google code flow
//   - HandleMe / HandleList          → read users
//
// Every sign-in answers with {"user": ..., "token": ...}. The client keeps
// the token and sends it back as "Authorization: Bearer <token>".
type AuthHandler struct {
	svc    *service.AuthService
	google *auth.GoogleProvider // nil when the code flow isn't configured
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil.
func NewAuthHandler(svc *service.AuthService, google *auth.GoogleProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, google: google, logger: logger}
}

// HandleRegister creates a local account.
//
// HTTP: POST /users/auth/register
// Body: {"username": "...", "password": "...", "confirmPassword": "...",
// "name": "...", "email": "..."} (name and email are optional)
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// HandleLogin checks a username/password pair.
//
// HTTP: POST /users/auth/login
// Body: {"username": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Login(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGoogleLogin signs in with an ID token obtained by the browser from
// Google Identity Services.
//
// HTTP: POST /users/auth/google-login
// Body: {"token": "<google id token>"}
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.GoogleLogin(r.Context(), body.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGoogleRedirect starts the server-side Google flow.
//
// HTTP: GET /users/auth/google
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When Google calls back, HandleGoogleCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: sent on the top-level redirect back from Google
//   - 10-minute expiry: long enough for the user to approve
func (h *AuthHandler) HandleGoogleRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the server-side Google flow.
//
// HTTP: GET /users/auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for Google's ID token
//  3. Sign in exactly as POST /users/auth/google-login would
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Clear the state cookie, it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Google sends ?error=access_denied when the user clicks "Cancel"
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.Unauthorized("Google authorization was denied"))
		return
	}

	// --- Step 2: Exchange the code ---
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	idToken, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("code", "could not complete Google sign-in"))
		return
	}

	// --- Step 3: Sign in ---
	result, err := h.svc.GoogleLogin(r.Context(), idToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleMe returns the authenticated user.
//
// HTTP: GET /users/me
// Auth: Required (RequireAuth has already loaded the user into the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleList returns every user.
//
// HTTP: GET /users
func (h *AuthHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// randomState returns 128 bits of crypto/rand as hex.
func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
