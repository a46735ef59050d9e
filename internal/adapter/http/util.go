package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"

	"juhd/internal/app"
	"juhd/internal/domain"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeAppError maps application and domain errors to responses.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	var we *app.WriteError
	if ve, ok := domain.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Message, "field": ve.Field})
		return
	}
	switch {
	case errors.Is(err, domain.ErrConfirmationRequired):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "confirm": true})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &we):
		body := map[string]any{"error": we.Error(), "label": we.Label}
		if we.Alert != "" {
			body["alert"] = we.Alert
		}
		writeJSON(w, http.StatusBadGateway, body)
	case errors.Is(err, domain.ErrEmailNotConfirmed):
		writeJSON(w, http.StatusForbidden, map[string]any{"error": err.Error(), "redirect": app.PathAccountVerification})
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, err)
	default:
		s.log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// spa serves static files from webDir and resolves every other path through
// the navigator: redirects are issued server side, screens get index.html.
func (s *Server) spa() http.Handler {
	fileServer := http.FileServer(http.Dir(s.webDir))
	indexPath := path.Join(s.webDir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqPath := path.Clean(r.URL.Path)
		if reqPath != "/" {
			if info, err := os.Stat(path.Join(s.webDir, reqPath)); err == nil && !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		d, err := s.resolve(w, r, reqPath)
		if err != nil {
			s.log.Warn("route resolution failed", zap.String("path", reqPath), zap.Error(err))
		} else if d.Redirect != "" {
			http.Redirect(w, r, d.Redirect, http.StatusFound)
			return
		}
		http.ServeFile(w, r, indexPath)
	})
}
