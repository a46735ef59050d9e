package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"juhd/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LocalAuthProvider authenticates against the app's own user and session
// tables. It has no mailer, so accounts are confirmed on creation.
type LocalAuthProvider struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

var (
	_ domain.AuthProvider     = (*LocalAuthProvider)(nil)
	_ domain.IdentityProvider = (*LocalAuthProvider)(nil)
)

// NewLocalAuthProvider creates a provider issuing sessions valid for ttl.
func NewLocalAuthProvider(users domain.UserRepository, sessions domain.SessionRepository, ttl time.Duration, log *zap.Logger) *LocalAuthProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalAuthProvider{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// SignUp creates a confirmed account and signs it in.
func (p *LocalAuthProvider) SignUp(ctx context.Context, email, password, name string) (*domain.AuthResult, error) {
	existing, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := p.now()
	user, err := p.users.Create(ctx, domain.User{
		ID:               uuid.NewString(),
		Email:            email,
		Name:             name,
		PasswordHash:     string(hash),
		EmailConfirmedAt: &now,
		CreatedAt:        now,
	})
	if err != nil {
		return nil, err
	}
	return p.startSession(ctx, user)
}

// SignIn checks the password and creates a session.
func (p *LocalAuthProvider) SignIn(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	if err := p.sessions.DeleteExpired(ctx); err != nil {
		p.log.Warn("failed to sweep expired sessions", zap.Error(err))
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		// Provisioned by single sign-on; there is no password to check.
		return nil, domain.ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return p.startSession(ctx, user)
}

// SignOut invalidates a session.
func (p *LocalAuthProvider) SignOut(ctx context.Context, token string) error {
	return p.sessions.Delete(ctx, token)
}

// GetUser resolves a session token to its user.
func (p *LocalAuthProvider) GetUser(ctx context.Context, token string) (*domain.User, error) {
	session, err := p.sessions.GetByToken(ctx, token)
	if err != nil || session == nil {
		return nil, domain.ErrSessionNotFound
	}

	if p.now().After(session.ExpiresAt) {
		_ = p.sessions.Delete(ctx, token)
		return nil, domain.ErrSessionExpired
	}

	user, err := p.users.GetByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// ResendConfirmation is a no-op: local accounts are confirmed on creation.
func (p *LocalAuthProvider) ResendConfirmation(_ context.Context, email string) error {
	p.log.Info("confirmation resend requested for local account", zap.String("email", email))
	return nil
}

// SignInWithIdentity creates a session for a user already authenticated by
// single sign-on, provisioning the account on first use.
func (p *LocalAuthProvider) SignInWithIdentity(ctx context.Context, email, name string) (*domain.AuthResult, error) {
	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		now := p.now()
		user, err = p.users.Create(ctx, domain.User{
			ID:               uuid.NewString(),
			Email:            email,
			Name:             name,
			EmailConfirmedAt: &now,
			CreatedAt:        now,
		})
		if err != nil {
			// Lost a race with a concurrent first login.
			user, err = p.users.GetByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if user == nil {
				return nil, domain.ErrUserNotFound
			}
		}
	}
	if !user.Confirmed() {
		if err := p.users.ConfirmEmail(ctx, user.ID, p.now()); err != nil {
			return nil, fmt.Errorf("confirm sso user: %w", err)
		}
		now := p.now()
		user.EmailConfirmedAt = &now
	}
	return p.startSession(ctx, user)
}

func (p *LocalAuthProvider) startSession(ctx context.Context, user *domain.User) (*domain.AuthResult, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := p.now()
	expiresAt := now.Add(p.ttl)
	if err := p.sessions.Create(ctx, user.ID, token, expiresAt); err != nil {
		return nil, err
	}
	return &domain.AuthResult{
		User:    user,
		Session: &domain.Session{Token: token, UserID: user.ID, ExpiresAt: expiresAt, CreatedAt: now},
	}, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
