package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"juhd/internal/app"
	"juhd/internal/domain"
)

// workspace returns the caller's workspace. A partial load still yields a
// usable workspace, so only other errors end the request.
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*app.Workspace, bool) {
	ws, err := s.svc.Workspaces.Get(r.Context(), userFromContext(r).ID)
	var le *app.LoadError
	if err != nil && !errors.As(err, &le) {
		s.writeAppError(w, err)
		return nil, false
	}
	return ws, true
}

type orderRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleGoalCreate(w http.ResponseWriter, r *http.Request) {
	var req app.GoalDraft
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	g, err := ws.AddGoal(r.Context(), req)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGoalUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.GoalPatch
	if err := parseJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	g, err := ws.UpdateGoal(r.PathValue("id"), patch)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGoalDelete(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGoalOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	goals, err := ws.ReorderGoals(req.IDs)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleTacticOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	tactics, err := ws.ReorderTactics(r.PathValue("id"), req.IDs)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tactics)
}

func (s *Server) handleTacticCreate(w http.ResponseWriter, r *http.Request) {
	var req app.TacticDraft
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	t, err := ws.AddTactic(r.Context(), req)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleTacticUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.TacticPatch
	if err := parseJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	t, err := ws.UpdateTactic(r.PathValue("id"), patch)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTacticDelete(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.DeleteTactic(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTacticType switches a tactic between daily and weekly. Without
// confirmation a tactic with progress answers 409 and stays unchanged.
func (s *Server) handleTacticType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type      domain.TacticType `json:"type"`
		Confirmed bool              `json:"confirmed"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	t, err := ws.ChangeTacticType(r.Context(), r.PathValue("id"), req.Type, req.Confirmed)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTacticCompletion(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.Atoi(r.PathValue("week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid week %q", r.PathValue("week")))
		return
	}
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	cur, found := ws.Tactic(id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("tactic %s: %w", id, domain.ErrNotFound))
		return
	}
	c, err := domain.ParseCompletion(cur.Type, req.Value)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	t, err := ws.SetCompletion(r.Context(), id, week, c)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleMeasurement(w http.ResponseWriter, r *http.Request) {
	var m domain.MeasurementValue
	if err := parseJSON(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	if err := ws.RecordMeasurement(r.Context(), m); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
