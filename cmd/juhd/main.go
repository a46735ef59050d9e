package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "juhd/internal/adapter/http"
	"juhd/internal/adapter/gemini"
	"juhd/internal/adapter/gotrue"
	"juhd/internal/adapter/memory"
	"juhd/internal/adapter/postgres"
	"juhd/internal/adapter/sqlite"
	"juhd/internal/app"
	"juhd/internal/config"
	"juhd/internal/domain"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

// storage is the set of ports backed by one database.
type storage struct {
	stores   app.Stores
	users    domain.UserRepository
	sessions domain.SessionRepository
	close    func() error
}

func openStorage(cfg config.Config, log *zap.Logger) (storage, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is empty, data is kept in memory only")
		db := memory.New()
		return storage{
			stores:   app.Stores{Goals: db, Tactics: db, Measurements: db, Visions: db, Cycles: db},
			users:    db,
			sessions: db.NewSessionRepo(),
			close:    func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return storage{}, fmt.Errorf("db open: %w", err)
	}
	return storage{
		stores:   app.Stores{Goals: db, Tactics: db, Measurements: db, Visions: db, Cycles: db},
		users:    db,
		sessions: postgres.NewSessionRepo(db),
		close:    db.Close,
	}, nil
}

func openClientState(cfg config.Config) (domain.ClientStateStore, func() error, error) {
	if cfg.ClientStatePath == "" {
		return memory.New(), func() error { return nil }, nil
	}
	store, err := sqlite.Open(cfg.ClientStatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("client state open: %w", err)
	}
	return store, store.Close, nil
}

func newAuthProvider(cfg config.Config, st storage, log *zap.Logger) (domain.AuthProvider, error) {
	if cfg.AuthMode == config.AuthGoTrue {
		c, err := gotrue.New(gotrue.Config{
			URL:         cfg.GoTrueURL,
			AnonKey:     cfg.GoTrueAnonKey,
			JWTSecret:   cfg.GoTrueJWTSecret,
			RedirectURL: cfg.GoTrueRedirectURL,
		})
		if err != nil {
			return nil, fmt.Errorf("gotrue: %w", err)
		}
		return c, nil
	}
	return app.NewLocalAuthProvider(st.users, st.sessions, cfg.SessionTTL, log.Named("auth")), nil
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	st, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	stateStore, closeState, err := openClientState(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeState() }()

	provider, err := newAuthProvider(cfg, st, log)
	if err != nil {
		return err
	}

	var gen domain.TextGenerator
	if cfg.GeminiAPIKey != "" {
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
		if err != nil {
			return err
		}
		gen = g
	} else {
		log.Info("GEMINI_API_KEY is empty, briefings use the fallback text")
	}

	hub := app.NewSessionHub()
	state := app.NewClientState(stateStore)
	workspaces := app.NewWorkspaces(st.stores, app.WorkspaceOptions{
		Debounce: cfg.SaveDebounce,
		Logger:   log.Named("workspace"),
	})
	detach := workspaces.Attach(hub)
	defer detach()

	srv := adapthttp.New(adapthttp.Services{
		Auth:       app.NewAuthService(provider, state, hub, log.Named("auth")),
		State:      state,
		Navigator:  app.NewNavigator(state),
		Workspaces: workspaces,
		Briefing:   app.NewBriefingService(gen, log.Named("briefing")),
	}, cfg.WebDir, log.Named("http"))

	if cfg.OIDCEnabled() {
		oidcCfg, err := adapthttp.NewOIDCConfig(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
		if err != nil {
			return err
		}
		srv = srv.WithOIDC(oidcCfg)
		log.Info("single sign-on enabled", zap.String("issuer", cfg.OIDCIssuer))
	}

	if cfg.AuthMode == config.AuthLocal {
		go sweepSessions(ctx, st.sessions, log)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	workspaces.CloseAll()
	return nil
}

// sweepSessions deletes expired local sessions once an hour.
func sweepSessions(ctx context.Context, sessions domain.SessionRepository, log *zap.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				log.Warn("failed to delete expired sessions", zap.Error(err))
			}
		}
	}
}
