package domain

import "context"

// ClientStateStore persists small per-device strings (signup email,
// onboarding step, one-shot notices). Values never expire.
type ClientStateStore interface {
	// GetState returns ok=false when the key is not set.
	GetState(ctx context.Context, deviceID, key string) (value string, ok bool, err error)
	SetState(ctx context.Context, deviceID, key, value string) error
	ClearState(ctx context.Context, deviceID, key string) error
}

// TextGenerator is the port for the generative-text service.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}
