// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"juhd/internal/domain"

	"go.uber.org/zap"
)

const minPasswordLength = 6

// Notices shown on the auth and check-email screens.
const (
	NoticeResendFailed   = "We could not resend the confirmation email. Please try again in a moment."
	NoticeEmailConfirmed = "Email confirmed. Please sign in to continue."
	NoticeSignInAgain    = "Your email is confirmed. Please sign in with the account you signed up with."
)

// AuthOutcome is the result of a successful sign-up or sign-in. Token is
// empty when the provider requires email confirmation first.
type AuthOutcome struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
	Next      string
}

// AuthService runs the sign-up, sign-in and verification flows on top of an
// AuthProvider and publishes session changes to the hub.
type AuthService struct {
	provider domain.AuthProvider
	state    *ClientState
	hub      *SessionHub
	log      *zap.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(provider domain.AuthProvider, state *ClientState, hub *SessionHub, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{provider: provider, state: state, hub: hub, log: log}
}

// SupportsIdentity reports whether single sign-on can be used with the
// configured provider.
func (s *AuthService) SupportsIdentity() bool {
	_, ok := s.provider.(domain.IdentityProvider)
	return ok
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return domain.Invalid("email", "Please enter a valid email address.")
	}
	return nil
}

// SignUp validates the input, creates the account and records the signup on
// the device. Validation happens before the provider is called.
func (s *AuthService) SignUp(ctx context.Context, deviceID, email, password, name string) (*AuthOutcome, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, domain.Invalid("name", "Please enter your name.")
	}
	if len(password) < minPasswordLength {
		return nil, domain.Invalid("password", fmt.Sprintf("Password must be at least %d characters.", minPasswordLength))
	}

	res, err := s.provider.SignUp(ctx, email, password, name)
	if err != nil {
		s.log.Warn("signup failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	if err := s.state.SetSignupEmail(ctx, deviceID, email); err != nil {
		return nil, err
	}
	if err := s.state.SetChangeAccount(ctx, deviceID, false); err != nil {
		return nil, err
	}
	if err := s.state.SetOnboardingStep(ctx, deviceID, StepWelcome); err != nil {
		return nil, err
	}

	out := &AuthOutcome{User: res.User, Next: PathAccountVerification}
	if res.Session != nil {
		out.Token = res.Session.Token
		out.ExpiresAt = res.Session.ExpiresAt
		out.Next = StepWelcome.Path()
		if res.User.Confirmed() {
			s.publish(SessionSignedIn, res.User)
		}
	}
	return out, nil
}

// SignIn authenticates with email and password. An unconfirmed account is
// signed out again and ErrEmailNotConfirmed is returned; the caller sends the
// user to the check-email screen.
func (s *AuthService) SignIn(ctx context.Context, deviceID, email, password string) (*AuthOutcome, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	res, err := s.provider.SignIn(ctx, email, password)
	if errors.Is(err, domain.ErrEmailNotConfirmed) {
		return nil, s.rememberUnconfirmed(ctx, deviceID, email)
	}
	if err != nil {
		return nil, err
	}

	if !res.User.Confirmed() {
		if res.Session != nil {
			if err := s.provider.SignOut(ctx, res.Session.Token); err != nil {
				s.log.Warn("failed to sign out unconfirmed user", zap.String("user", res.User.ID), zap.Error(err))
			}
		}
		return nil, s.rememberUnconfirmed(ctx, deviceID, email)
	}
	if res.Session == nil {
		return nil, fmt.Errorf("sign in %s: provider returned no session", email)
	}

	if err := s.state.ClearSignupEmail(ctx, deviceID); err != nil {
		return nil, err
	}
	if err := s.state.SetChangeAccount(ctx, deviceID, false); err != nil {
		return nil, err
	}
	s.publish(SessionSignedIn, res.User)
	return &AuthOutcome{
		User:      res.User,
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
		Next:      PathApp,
	}, nil
}

func (s *AuthService) rememberUnconfirmed(ctx context.Context, deviceID, email string) error {
	if err := s.state.SetSignupEmail(ctx, deviceID, email); err != nil {
		return err
	}
	if err := s.state.SetChangeAccount(ctx, deviceID, false); err != nil {
		return err
	}
	return domain.ErrEmailNotConfirmed
}

// SignInWithIdentity signs in a user verified by single sign-on.
func (s *AuthService) SignInWithIdentity(ctx context.Context, deviceID, email, name string) (*AuthOutcome, error) {
	idp, ok := s.provider.(domain.IdentityProvider)
	if !ok {
		return nil, errors.New("single sign-on is not supported by the configured auth provider")
	}
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	res, err := idp.SignInWithIdentity(ctx, email, name)
	if err != nil {
		return nil, err
	}
	if err := s.state.ClearSignupEmail(ctx, deviceID); err != nil {
		return nil, err
	}
	s.publish(SessionSignedIn, res.User)
	return &AuthOutcome{
		User:      res.User,
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
		Next:      PathApp,
	}, nil
}

// CurrentUser resolves a session token. Sessions of unconfirmed users are
// rejected with ErrEmailNotConfirmed.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}
	user, err := s.provider.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if !user.Confirmed() {
		return nil, domain.ErrEmailNotConfirmed
	}
	return user, nil
}

// SignOut ends the session and notifies subscribers. user may be nil when
// the session could not be resolved.
func (s *AuthService) SignOut(ctx context.Context, token string, user *domain.User) error {
	var err error
	if token != "" {
		err = s.provider.SignOut(ctx, token)
		if err != nil {
			s.log.Warn("provider sign-out failed", zap.Error(err))
		}
	}
	if user != nil {
		s.publish(SessionSignedOut, user)
	}
	return err
}

// Resend asks the provider to send the confirmation email again for the
// signup email stored on the device. On failure the returned notice is
// meant for the user.
func (s *AuthService) Resend(ctx context.Context, deviceID string) (string, error) {
	email, err := s.state.SignupEmail(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", domain.Invalid("email", "There is no pending signup on this device.")
	}
	if err := s.provider.ResendConfirmation(ctx, email); err != nil {
		s.log.Warn("confirmation resend failed", zap.String("email", email), zap.Error(err))
		return NoticeResendFailed, err
	}
	return "", nil
}

// ChangeAccount forgets the pending signup so a different account can be
// used, and returns the signup path.
func (s *AuthService) ChangeAccount(ctx context.Context, deviceID string) (string, error) {
	if err := s.state.ClearSignupEmail(ctx, deviceID); err != nil {
		return "", err
	}
	if err := s.state.SetChangeAccount(ctx, deviceID, true); err != nil {
		return "", err
	}
	return PathSignup, nil
}

func (s *AuthService) publish(kind SessionEventKind, u *domain.User) {
	if s.hub == nil || u == nil {
		return
	}
	s.hub.Publish(SessionEvent{Kind: kind, User: *u})
}
