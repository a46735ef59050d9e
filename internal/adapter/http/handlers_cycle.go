package adapthttp

import (
	"errors"
	"net/http"
	"time"

	"juhd/internal/app"
	"juhd/internal/domain"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type workspaceResponse struct {
	app.Snapshot
	SaveStatus app.SaveStatus `json:"saveStatus"`
	Alert      string         `json:"alert,omitempty"`
}

// handleWorkspace returns the whole working copy. Collections that failed to
// load come back empty together with a blocking alert.
func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.svc.Workspaces.Get(r.Context(), userFromContext(r).ID)
	var le *app.LoadError
	if err != nil && !errors.As(err, &le) {
		s.writeAppError(w, err)
		return
	}

	resp := workspaceResponse{Snapshot: ws.Snapshot(), SaveStatus: ws.SaveStatus()}
	if le != nil {
		resp.Alert = app.AlertLoad
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveStatus(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.SaveStatus())
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	n := ws.Flush()
	writeJSON(w, http.StatusOK, map[string]any{"flushed": n, "saveStatus": ws.SaveStatus()})
}

func (s *Server) handleVisionGet(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Vision())
}

func (s *Server) handleVisionUpdate(w http.ResponseWriter, r *http.Request) {
	var patch domain.VisionPatch
	if err := parseJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.UpdateVision(patch))
}

type cycleResponse struct {
	domain.Cycle
	StartDate string `json:"startDate"`
	ViewWeek  int    `json:"viewWeek"`
}

func newCycleResponse(c domain.Cycle, viewWeek int) cycleResponse {
	return cycleResponse{Cycle: c, StartDate: c.StartDate.Format(dateLayout), ViewWeek: viewWeek}
}

func (s *Server) handleCycleGet(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newCycleResponse(ws.Cycle(), ws.ViewWeek()))
}

func (s *Server) handleCycleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		s.writeAppError(w, domain.Invalid("date", "date must look like 2006-01-02"))
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	c, err := ws.SetCycleStart(r.Context(), date)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCycleResponse(c, ws.ViewWeek()))
}

func (s *Server) handleCycleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	c, err := ws.ResetCycle(r.Context(), req.Confirmed, s.now())
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCycleResponse(c, ws.ViewWeek()))
}

func (s *Server) handleViewWeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Week int `json:"week"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	if err := ws.SetViewWeek(req.Week); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCycleResponse(ws.Cycle(), ws.ViewWeek()))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	d, err := ws.Dashboard(intQuery(r, "week", 0), s.now())
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleBriefing writes a short briefing about the current week. It always
// answers 200; generation failures come back as a fallback sentence.
func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	d, err := ws.Dashboard(ws.ActualWeek(s.now()), s.now())
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	start := s.now()
	text := s.svc.Briefing.Generate(r.Context(), d.BriefingInput())
	s.log.Debug("briefing generated", zap.Duration("duration", time.Since(start)))
	writeJSON(w, http.StatusOK, map[string]any{"text": text})
}
