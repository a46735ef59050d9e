package adapthttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"juhd/internal/app"
	"juhd/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	userContextKey   contextKey = "user"
	deviceContextKey contextKey = "device"
)

const (
	sessionCookie = "session"
	deviceCookie  = "juhd_device"
	deviceMaxAge  = 400 * 24 * 60 * 60
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// deviceMiddleware makes sure every browser carries a device id. Client state
// (signup email, onboarding step, notices) is keyed by it.
func (s *Server) deviceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(deviceCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     deviceCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   deviceMaxAge,
			})
		}
		ctx := context.WithValue(r.Context(), deviceContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware validates the session cookie.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if disabled (for tests)
		if s.disableAuth {
			user := s.devUser
			ctx := context.WithValue(r.Context(), userContextKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, domain.ErrSessionNotFound)
			return
		}

		user, err := s.svc.Auth.CurrentUser(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, domain.ErrSessionExpired) {
				clearSessionCookie(w)
			}
			s.writeAppError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(r *http.Request) *domain.User {
	u, _ := r.Context().Value(userContextKey).(*domain.User)
	return u
}

func deviceID(r *http.Request) string {
	id, _ := r.Context().Value(deviceContextKey).(string)
	return id
}

// optionalUser resolves the session cookie without rejecting the request.
func (s *Server) optionalUser(r *http.Request) *domain.User {
	if s.disableAuth {
		user := s.devUser
		return &user
	}
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	user, err := s.svc.Auth.CurrentUser(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return user
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// endSession signs the caller out and clears the cookie.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request, user *domain.User) {
	token := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		token = c.Value
	}
	if err := s.svc.Auth.SignOut(r.Context(), token, user); err != nil {
		s.log.Warn("sign-out failed", zap.Error(err))
	}
	clearSessionCookie(w)
}

// resolve runs the navigator for a client path. A decision that asks for
// sign-out ends the session before it is returned.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request, clientPath string) (app.Decision, error) {
	user := s.optionalUser(r)
	d, err := s.svc.Navigator.Resolve(r.Context(), app.Route{
		Path:               clientPath,
		VerificationStatus: r.URL.Query().Get("verification_status"),
		DeviceID:           deviceID(r),
		User:               user,
	})
	if err != nil {
		return d, err
	}
	if d.SignOut {
		s.endSession(w, r, user)
	}
	return d, nil
}
