package adapthttp

import (
	"net/http"
	"time"

	"juhd/internal/app"
	"juhd/internal/domain"

	"go.uber.org/zap"
)

// Services are the application services the adapter drives.
type Services struct {
	Auth       *app.AuthService
	State      *app.ClientState
	Navigator  *app.Navigator
	Workspaces *app.Workspaces
	Briefing   *app.BriefingService
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	svc        Services
	webDir     string
	log        *zap.Logger
	oidcConfig OIDCConfig
	now        func() time.Time

	disableAuth bool
	devUser     domain.User
}

// New creates a Server wired to the given application services.
func New(svc Services, webDir string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, webDir: webDir, log: log, now: time.Now}
}

// WithOIDC enables single sign-on.
func (s *Server) WithOIDC(cfg OIDCConfig) *Server {
	s.oidcConfig = cfg
	return s
}

// WithoutAuth treats every request as signed in as user. Tests only.
func (s *Server) WithoutAuth(user domain.User) *Server {
	s.disableAuth = true
	s.devUser = user
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	api.HandleFunc("GET /config", s.handleConfig)
	api.HandleFunc("GET /route", s.handleRoute)

	api.HandleFunc("POST /auth/signup", s.handleSignup)
	api.HandleFunc("POST /auth/login", s.handleLogin)
	api.HandleFunc("POST /auth/logout", s.handleLogout)
	api.HandleFunc("POST /auth/resend", s.handleResend)
	api.HandleFunc("POST /auth/change-account", s.handleChangeAccount)
	api.HandleFunc("GET /auth/notice", s.handleNotice)
	api.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)
	api.Handle("GET /auth/session", s.authMiddleware(http.HandlerFunc(s.handleSession)))
	api.HandleFunc("PUT /onboarding/step", s.handleOnboardingStep)

	private := http.NewServeMux()
	private.HandleFunc("GET /workspace", s.handleWorkspace)
	private.HandleFunc("GET /save-status", s.handleSaveStatus)
	private.HandleFunc("POST /flush", s.handleFlush)

	private.HandleFunc("POST /goals", s.handleGoalCreate)
	private.HandleFunc("PUT /goals/order", s.handleGoalOrder)
	private.HandleFunc("PATCH /goals/{id}", s.handleGoalUpdate)
	private.HandleFunc("DELETE /goals/{id}", s.handleGoalDelete)
	private.HandleFunc("PUT /goals/{id}/tactics/order", s.handleTacticOrder)

	private.HandleFunc("POST /tactics", s.handleTacticCreate)
	private.HandleFunc("PATCH /tactics/{id}", s.handleTacticUpdate)
	private.HandleFunc("DELETE /tactics/{id}", s.handleTacticDelete)
	private.HandleFunc("PUT /tactics/{id}/type", s.handleTacticType)
	private.HandleFunc("PUT /tactics/{id}/completions/{week}", s.handleTacticCompletion)

	private.HandleFunc("PUT /measurements", s.handleMeasurement)

	private.HandleFunc("GET /vision", s.handleVisionGet)
	private.HandleFunc("PATCH /vision", s.handleVisionUpdate)

	private.HandleFunc("GET /cycle", s.handleCycleGet)
	private.HandleFunc("PUT /cycle/start", s.handleCycleStart)
	private.HandleFunc("POST /cycle/reset", s.handleCycleReset)
	private.HandleFunc("PUT /cycle/view-week", s.handleViewWeek)

	private.HandleFunc("GET /dashboard", s.handleDashboard)
	private.HandleFunc("POST /briefing", s.handleBriefing)

	api.Handle("/", s.authMiddleware(private))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("/", s.spa())

	return withNoCache(s.loggingMiddleware(s.deviceMiddleware(root)))
}
