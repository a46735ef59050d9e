package app

import (
	"context"
	"fmt"

	"juhd/internal/domain"
)

const (
	stateSignupEmail        = "signup_email"
	stateChangeAccount      = "change_account"
	stateVerificationNotice = "verification_notice"
	stateOnboardingStep     = "onboarding_step"
)

// OnboardingStep marks where a user left the onboarding flow.
type OnboardingStep string

const (
	StepWelcome        OnboardingStep = "welcome"
	StepUserProfile    OnboardingStep = "user-profile"
	StepAccountability OnboardingStep = "accountability"
	StepCalendar       OnboardingStep = "calendar"
	StepDone           OnboardingStep = "done"
)

// Valid reports whether s is a known step.
func (s OnboardingStep) Valid() bool {
	switch s {
	case StepWelcome, StepUserProfile, StepAccountability, StepCalendar, StepDone:
		return true
	}
	return false
}

// Path returns the route of an onboarding step. Done has no route.
func (s OnboardingStep) Path() string {
	if s == StepDone || !s.Valid() {
		return PathDashboard
	}
	return "/app/onboard/" + string(s)
}

// ClientState wraps the per-device key/value store with typed accessors for
// the values that survive page reloads.
type ClientState struct {
	store domain.ClientStateStore
}

// NewClientState creates a ClientState over store.
func NewClientState(store domain.ClientStateStore) *ClientState {
	return &ClientState{store: store}
}

// SignupEmail returns the email used for the last signup or unconfirmed login.
func (c *ClientState) SignupEmail(ctx context.Context, deviceID string) (string, error) {
	v, _, err := c.store.GetState(ctx, deviceID, stateSignupEmail)
	return v, err
}

// SetSignupEmail stores the pending signup email.
func (c *ClientState) SetSignupEmail(ctx context.Context, deviceID, email string) error {
	return c.store.SetState(ctx, deviceID, stateSignupEmail, email)
}

// ClearSignupEmail forgets the pending signup email.
func (c *ClientState) ClearSignupEmail(ctx context.Context, deviceID string) error {
	return c.store.ClearState(ctx, deviceID, stateSignupEmail)
}

// ChangeAccount reports whether the user asked to switch accounts.
func (c *ClientState) ChangeAccount(ctx context.Context, deviceID string) (bool, error) {
	v, _, err := c.store.GetState(ctx, deviceID, stateChangeAccount)
	return v == "true", err
}

// SetChangeAccount sets or clears the change-account flag.
func (c *ClientState) SetChangeAccount(ctx context.Context, deviceID string, on bool) error {
	if !on {
		return c.store.ClearState(ctx, deviceID, stateChangeAccount)
	}
	return c.store.SetState(ctx, deviceID, stateChangeAccount, "true")
}

// SetVerificationNotice stores a notice shown once on the next auth page.
func (c *ClientState) SetVerificationNotice(ctx context.Context, deviceID, notice string) error {
	return c.store.SetState(ctx, deviceID, stateVerificationNotice, notice)
}

// TakeVerificationNotice returns the pending notice and clears it.
func (c *ClientState) TakeVerificationNotice(ctx context.Context, deviceID string) (string, error) {
	v, ok, err := c.store.GetState(ctx, deviceID, stateVerificationNotice)
	if err != nil || !ok {
		return "", err
	}
	if err := c.store.ClearState(ctx, deviceID, stateVerificationNotice); err != nil {
		return "", err
	}
	return v, nil
}

// OnboardingStep returns the stored step, or "" when none or unknown.
func (c *ClientState) OnboardingStep(ctx context.Context, deviceID string) (OnboardingStep, error) {
	v, _, err := c.store.GetState(ctx, deviceID, stateOnboardingStep)
	if err != nil {
		return "", err
	}
	step := OnboardingStep(v)
	if !step.Valid() {
		return "", nil
	}
	return step, nil
}

// SetOnboardingStep records the step the user reached.
func (c *ClientState) SetOnboardingStep(ctx context.Context, deviceID string, step OnboardingStep) error {
	if !step.Valid() {
		return domain.Invalid("step", fmt.Sprintf("unknown onboarding step %q", step))
	}
	return c.store.SetState(ctx, deviceID, stateOnboardingStep, string(step))
}
