// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"juhd/internal/app"
	"juhd/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
)

type authResponse struct {
	User *domain.User `json:"user"`
	Next string       `json:"next"`
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, out *app.AuthOutcome) {
	if out.Token != "" {
		setSessionCookie(w, r, out.Token, out.ExpiresAt)
	}
	writeJSON(w, http.StatusOK, authResponse{User: out.User, Next: out.Next})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := s.svc.Auth.SignUp(r.Context(), deviceID(r), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeOutcome(w, r, out)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := s.svc.Auth.SignIn(r.Context(), deviceID(r), req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeOutcome(w, r, out)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.endSession(w, r, s.optionalUser(r))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "next": app.PathLanding})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": userFromContext(r)})
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	notice, err := s.svc.Auth.Resend(r.Context(), deviceID(r))
	if err != nil {
		if _, ok := domain.AsValidation(err); ok || notice == "" {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "notice": notice})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChangeAccount(w http.ResponseWriter, r *http.Request) {
	next, err := s.svc.Auth.ChangeAccount(r.Context(), deviceID(r))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"next": next})
}

func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	notice, err := s.svc.State.TakeVerificationNotice(r.Context(), deviceID(r))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	email, err := s.svc.State.SignupEmail(r.Context(), deviceID(r))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notice": notice, "email": email})
}

func (s *Server) handleOnboardingStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step app.OnboardingStep `json:"step"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.State.SetOnboardingStep(r.Context(), deviceID(r), req.Step); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"step": req.Step, "next": req.Step.Path()})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled": s.oidcConfig.Enabled && s.svc.Auth.SupportsIdentity(),
	})
}

// handleRoute answers client-side navigations with the navigator decision.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" || !strings.HasPrefix(p, "/") {
		writeError(w, http.StatusBadRequest, errors.New("path must be absolute"))
		return
	}
	d, err := s.resolve(w, r, path.Clean(p))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}

	state, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	token, err := s.oidcConfig.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.log.Warn("oidc code exchange failed", zap.Error(err))
		http.Error(w, "failed to exchange token", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token", http.StatusInternalServerError)
		return
	}

	idToken, err := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		s.log.Warn("oidc token verification failed", zap.Error(err))
		http.Error(w, "failed to verify token", http.StatusInternalServerError)
		return
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err = idToken.Claims(&claims); err != nil {
		http.Error(w, "failed to parse claims", http.StatusInternalServerError)
		return
	}
	if claims.Email == "" {
		http.Error(w, "identity provider returned no email", http.StatusBadRequest)
		return
	}

	out, err := s.svc.Auth.SignInWithIdentity(r.Context(), deviceID(r), claims.Email, claims.Name)
	if err != nil {
		s.log.Error("sso login failed", zap.Error(err))
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, r, out.Token, out.ExpiresAt)
	http.Redirect(w, r, out.Next, http.StatusFound)
}
