package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"

	"github.com/sankalp/sankalp/internal/auth"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/service"
)

const stateCookieName = "oauth_state"

// GoogleOAuth is the part of *auth.GoogleProvider the handler needs.
type GoogleOAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthHandler serves the sign-up and sign-in endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGoogleLogin / HandleGoogleCallback → browser OAuth round trip
//   - HandleGoogleToken                        → SPA posts the OAuth code
//   - HandleRegister / HandleVerify / HandleResendOTP → email + OTP sign-up
//   - HandleLogin / HandleLogout               → password session management
//
// Every successful sign-in sets the access_token HttpOnly cookie and also
// returns the token in the body for clients that send it as a Bearer header.
type AuthHandler struct {
	auth         *service.AuthService
	google       GoogleOAuth
	tokenTTL     time.Duration
	cookieSecure bool
	frontendURL  string
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil when Google
// sign-in is not configured; its routes then answer 503.
func NewAuthHandler(
	authSvc *service.AuthService,
	google GoogleOAuth,
	tokenTTL time.Duration,
	cookieSecure bool,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authSvc,
		google:       google,
		tokenTTL:     tokenTTL,
		cookieSecure: cookieSecure,
		frontendURL:  frontendURL,
		logger:       logger,
	}
}

// AuthResponse is the body of every successful sign-in.
type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// A random state is stored in a 10-minute HttpOnly cookie and checked on the
// callback, which proves the round trip started here.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.googleDisabled(w)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the browser OAuth flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a verified Google profile
//  3. Upsert the user and issue a session cookie
//  4. Redirect to the frontend
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.googleDisabled(w)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state is single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.frontend("denied"), http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	result, err := h.signInGoogle(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google sign-in failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.frontend("failed"), http.StatusSeeOther)
		return
	}

	h.setSession(w, result.Token)
	http.Redirect(w, r, h.frontend(""), http.StatusSeeOther)
}

// HandleGoogleToken is the JSON variant of the callback for single-page
// clients that receive the code themselves.
//
// HTTP: POST /auth/google/callback {"code": "..."}
func (h *AuthHandler) HandleGoogleToken(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.googleDisabled(w)
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "code is required", Field: "code"})
		return
	}

	result, err := h.signInGoogle(r.Context(), body.Code)
	if err != nil {
		fail(h.logger, w, r, "google sign-in", err)
		return
	}
	h.respondSession(w, http.StatusOK, result)
}

func (h *AuthHandler) signInGoogle(ctx context.Context, code string) (*service.AuthResult, error) {
	gu, err := h.google.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return h.auth.LoginGoogle(ctx, gu)
}

// HandleRegister creates an unverified account and emails a code.
//
// HTTP: POST /auth/register {"name", "email", "password"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), in)
	if err != nil {
		fail(h.logger, w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"message": "verification code sent",
	})
}

// HandleVerify checks the emailed code and signs the user in.
//
// HTTP: POST /auth/verify {"email", "otp"}
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.VerifyEmail(r.Context(), body.Email, body.OTP)
	if err != nil {
		fail(h.logger, w, r, "verify email", err)
		return
	}
	h.respondSession(w, http.StatusOK, result)
}

// HandleResendOTP sends a fresh code. The answer is the same whether or not
// the address has a pending account.
//
// HTTP: POST /auth/otp {"email"}
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ResendOTP(r.Context(), body.Email); err != nil {
		fail(h.logger, w, r, "resend code", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "if the address has a pending account, a new code was sent",
	})
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /auth/login {"email", "password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		fail(h.logger, w, r, "login", err)
		return
	}
	h.respondSession(w, http.StatusOK, result)
}

// HandleLogout clears the session cookie. Tokens are stateless, so this only
// removes the browser's copy.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) respondSession(w http.ResponseWriter, status int, result *service.AuthResult) {
	h.setSession(w, result.Token)
	writeJSON(w, status, AuthResponse{User: result.User, Token: result.Token})
}

// frontend builds the post-login redirect, tagging failures with ?auth=.
func (h *AuthHandler) frontend(outcome string) string {
	base := h.frontendURL
	if base == "" {
		base = "/"
	}
	if outcome == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "/?auth=" + url.QueryEscape(outcome)
	}
	q := u.Query()
	q.Set("auth", outcome)
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *AuthHandler) googleDisabled(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error:   "unavailable",
		Message: "Google sign-in is not configured",
	})
}
