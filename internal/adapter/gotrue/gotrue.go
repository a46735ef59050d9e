// Package gotrue implements domain.AuthProvider against a hosted GoTrue
// (Supabase Auth) server.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"juhd/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	authapi "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

var _ domain.AuthProvider = (*Client)(nil)

// Config configures a Client.
type Config struct {
	URL     string
	AnonKey string
	// JWTSecret verifies access tokens locally before the user is fetched.
	// Empty skips local verification.
	JWTSecret string
	// RedirectURL is where confirmation links send the user back to.
	RedirectURL string
	HTTPClient  *http.Client
}

// Client talks to the GoTrue REST API through the community client.
type Client struct {
	api      authapi.Client
	base     string
	anonKey  string
	secret   []byte
	redirect string
	http     *http.Client
	now      func() time.Time
}

// APIError is a GoTrue error response that maps to no domain error.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gotrue: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gotrue: %d: %s", e.Status, e.Message)
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("gotrue URL is required")
	}
	base := strings.TrimRight(cfg.URL, "/")
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse gotrue URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		api:      authapi.New("", cfg.AnonKey).WithCustomGoTrueURL(base),
		base:     base,
		anonKey:  cfg.AnonKey,
		secret:   []byte(cfg.JWTSecret),
		redirect: cfg.RedirectURL,
		http:     hc,
		now:      time.Now,
	}, nil
}

// callTransport binds the community client's requests to ctx and adds the
// confirmation redirect to signups.
type callTransport struct {
	ctx      context.Context
	redirect string
	next     http.RoundTripper
}

func (t callTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if t.redirect != "" && strings.HasSuffix(req.URL.Path, "/signup") {
		q := req.URL.Query()
		q.Set("redirect_to", t.redirect)
		req.URL.RawQuery = q.Encode()
	}
	return t.next.RoundTrip(req)
}

// session returns the community client scoped to one call.
func (c *Client) session(ctx context.Context, token string) authapi.Client {
	next := c.http.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	api := c.api.WithClient(http.Client{
		Transport: callTransport{ctx: ctx, redirect: c.redirect, next: next},
		Timeout:   c.http.Timeout,
	})
	if token != "" {
		api = api.WithToken(token)
	}
	return api
}

// SignUp registers a user. The session is nil while the email awaits
// confirmation.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*domain.AuthResult, error) {
	res, err := c.session(ctx, "").Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data:     map[string]any{"name": name},
	})
	if err != nil {
		return nil, wrapError(err)
	}
	if res.AccessToken != "" {
		return c.result(res.Session), nil
	}
	return &domain.AuthResult{User: toDomain(res.User)}, nil
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	res, err := c.session(ctx, "").SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, wrapError(err)
	}
	if res.AccessToken == "" {
		return nil, errors.New("gotrue: token response without session")
	}
	return c.result(res.Session), nil
}

// SignOut revokes the session behind token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	err := wrapError(c.session(ctx, token).Logout())
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}

// GetUser returns the user behind token. The token is verified locally first
// when a JWT secret is configured.
func (c *Client) GetUser(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}
	if len(c.secret) > 0 {
		if err := c.verify(token); err != nil {
			return nil, err
		}
	}
	res, err := c.session(ctx, token).GetUser()
	if err != nil {
		return nil, wrapError(err)
	}
	return toDomain(res.User), nil
}

// ResendConfirmation sends the signup confirmation email again. The
// community client has no /resend call, so this one goes out directly.
func (c *Client) ResendConfirmation(ctx context.Context, email string) error {
	b, err := json.Marshal(map[string]string{"type": "signup", "email": email})
	if err != nil {
		return err
	}
	u := c.base + "/resend"
	if c.redirect != "" {
		u += "?" + url.Values{"redirect_to": {c.redirect}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue resend: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return mapError(resp.StatusCode, raw)
}

func (c *Client) verify(token string) error {
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrSessionExpired
	default:
		return fmt.Errorf("%w: %v", domain.ErrSessionNotFound, err)
	}
}

func (c *Client) result(s types.Session) *domain.AuthResult {
	now := c.now()
	expires := now.Add(time.Duration(s.ExpiresIn) * time.Second)
	if s.ExpiresAt > 0 {
		expires = time.Unix(s.ExpiresAt, 0)
	}
	u := toDomain(s.User)
	return &domain.AuthResult{
		User: u,
		Session: &domain.Session{
			Token:     s.AccessToken,
			UserID:    u.ID,
			ExpiresAt: expires,
			CreatedAt: now,
		},
	}
}

// wrapError recovers the status and body the community client folds into
// its error text ("response status code N: body").
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrInvalidTokenRequest) {
		return domain.ErrInvalidCredentials
	}
	var status int
	if n, _ := fmt.Sscanf(err.Error(), "response status code %d", &status); n != 1 {
		return fmt.Errorf("gotrue: %w", err)
	}
	_, raw, _ := strings.Cut(err.Error(), ": ")
	return mapError(status, []byte(raw))
}

type apiErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// mapError turns an error response into a domain error where one applies.
// Older servers report error/error_description, newer ones error_code/msg.
func mapError(status int, raw []byte) error {
	var b apiErrorBody
	_ = json.Unmarshal(raw, &b)
	msg := firstNonEmpty(b.Msg, b.ErrorDescription, b.Message, b.Error, http.StatusText(status))
	lower := strings.ToLower(msg)

	switch {
	case b.ErrorCode == "email_not_confirmed" || strings.Contains(lower, "email not confirmed"):
		return domain.ErrEmailNotConfirmed
	case b.ErrorCode == "invalid_credentials" || strings.Contains(lower, "invalid login credentials"):
		return domain.ErrInvalidCredentials
	case b.ErrorCode == "user_already_exists" || b.ErrorCode == "email_exists" || strings.Contains(lower, "already registered"):
		return domain.ErrEmailTaken
	case b.ErrorCode == "bad_jwt" || b.ErrorCode == "session_not_found" || status == http.StatusUnauthorized:
		return domain.ErrSessionNotFound
	}
	return &APIError{Status: status, Code: firstNonEmpty(b.ErrorCode, b.Error), Message: msg}
}

func toDomain(u types.User) *domain.User {
	confirmed := u.EmailConfirmedAt
	if confirmed == nil && !u.ConfirmedAt.IsZero() {
		at := u.ConfirmedAt
		confirmed = &at
	}
	return &domain.User{
		ID:               u.ID.String(),
		Email:            u.Email,
		Name:             displayName(u.UserMetadata, u.Email),
		EmailConfirmedAt: confirmed,
		CreatedAt:        u.CreatedAt,
	}
}

// displayName prefers the metadata name, then the email local part.
func displayName(meta map[string]any, email string) string {
	for _, k := range []string{"name", "full_name"} {
		if s, ok := meta[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "User"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
