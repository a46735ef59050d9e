// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailNotConfirmed indicates that the account exists but its email is not verified yet.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrEmailTaken indicates that an account with the email already exists.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// User represents an authenticated user in the system.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt,omitempty"`
	PasswordHash     string     `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Confirmed reports whether the user's email address has been verified.
func (u *User) Confirmed() bool {
	return u != nil && u.EmailConfirmedAt != nil
}

// Session represents an active user session.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResult is what an auth provider returns after sign-up or sign-in.
// Session is nil when the provider requires email confirmation first.
type AuthResult struct {
	User    *User
	Session *Session
}

// AuthProvider is the port for the authentication service.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password, name string) (*AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*AuthResult, error)
	SignOut(ctx context.Context, token string) error
	GetUser(ctx context.Context, token string) (*User, error)
	ResendConfirmation(ctx context.Context, email string) error
}

// IdentityProvider is implemented by auth providers that can sign in a user
// already verified by an external identity provider (single sign-on).
type IdentityProvider interface {
	SignInWithIdentity(ctx context.Context, email, name string) (*AuthResult, error)
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u User) (*User, error)
	ConfirmEmail(ctx context.Context, id string, at time.Time) error
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}
