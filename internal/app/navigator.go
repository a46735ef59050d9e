package app

import (
	"context"
	"strings"

	"juhd/internal/domain"
)

// Route paths served by the single-page client.
const (
	PathLanding             = "/"
	PathLogin               = "/auth/login"
	PathSignup              = "/auth/signup"
	PathApp                 = "/app"
	PathDashboard           = "/app/dashboard"
	PathPlan                = "/app/plan"
	PathMeasurements        = "/app/measurements"
	PathVision              = "/app/vision"
	PathAccountVerification = "/app/onboard/account-verification"
)

// Values of the verification_status query parameter appended by the
// confirmation link. The misspelled failure value is what the hosted
// provider's redirect template sends.
const (
	VerificationSuccess         = "success"
	VerificationFailed          = "failiure"
	VerificationFailedAlt       = "failure"
	VerificationAlreadyVerified = "already_verified"
)

// View names a screen of the client.
type View string

const (
	ViewLanding        View = "landing"
	ViewLogin          View = "login"
	ViewSignup         View = "signup"
	ViewCheckEmail     View = "check-email"
	ViewDashboard      View = "dashboard"
	ViewPlan           View = "plan"
	ViewMeasurements   View = "measurements"
	ViewVision         View = "vision"
	ViewWelcome        View = "onboard-welcome"
	ViewUserProfile    View = "onboard-user-profile"
	ViewAccountability View = "onboard-accountability"
	ViewCalendar       View = "onboard-calendar"
)

// Route is an incoming client navigation.
type Route struct {
	Path               string
	VerificationStatus string
	DeviceID           string
	// User is nil when there is no usable session.
	User *domain.User
}

// Decision tells the client what to render or where to go. Exactly one of
// View and Redirect is set. SignOut asks the caller to end the current
// session before redirecting.
type Decision struct {
	View     View   `json:"view,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	SignOut  bool   `json:"signOut,omitempty"`
}

func render(v View) Decision        { return Decision{View: v} }
func redirect(path string) Decision { return Decision{Redirect: path} }

var onboardingViews = map[string]View{
	StepWelcome.Path():        ViewWelcome,
	StepUserProfile.Path():    ViewUserProfile,
	StepAccountability.Path(): ViewAccountability,
	StepCalendar.Path():       ViewCalendar,
}

var appViews = map[string]View{
	PathDashboard:    ViewDashboard,
	PathPlan:         ViewPlan,
	PathMeasurements: ViewMeasurements,
	PathVision:       ViewVision,
}

// Navigator maps client routes to views, enforcing the session and
// onboarding gates.
type Navigator struct {
	state *ClientState
}

// NewNavigator creates a Navigator.
func NewNavigator(state *ClientState) *Navigator {
	return &Navigator{state: state}
}

// Resolve decides what to show for r.
func (n *Navigator) Resolve(ctx context.Context, r Route) (Decision, error) {
	path := strings.TrimSuffix(r.Path, "/")
	if path == "" {
		path = PathLanding
	}

	if path == PathApp && r.VerificationStatus != "" {
		if d, ok, err := n.verification(ctx, r); ok || err != nil {
			return d, err
		}
	}

	switch {
	case path == PathLanding:
		return render(ViewLanding), nil
	case path == "/auth" || strings.HasPrefix(path, "/auth/"):
		if strings.Contains(path, "signup") {
			return render(ViewSignup), nil
		}
		return render(ViewLogin), nil
	case path == PathApp || strings.HasPrefix(path, PathApp+"/"):
		return n.app(ctx, path, r)
	}
	return redirect(PathLanding), nil
}

func (n *Navigator) app(ctx context.Context, path string, r Route) (Decision, error) {
	if path == PathAccountVerification {
		return render(ViewCheckEmail), nil
	}
	if r.User == nil {
		return redirect(PathLogin), nil
	}
	if path == PathApp {
		return redirect(PathDashboard), nil
	}

	if strings.HasPrefix(path, "/app/onboard/") {
		v, ok := onboardingViews[path]
		if !ok {
			return redirect(StepWelcome.Path()), nil
		}
		step := OnboardingStep(strings.TrimPrefix(path, "/app/onboard/"))
		if err := n.state.SetOnboardingStep(ctx, r.DeviceID, step); err != nil {
			return Decision{}, err
		}
		return render(v), nil
	}

	step, err := n.state.OnboardingStep(ctx, r.DeviceID)
	if err != nil {
		return Decision{}, err
	}
	if step != "" && step != StepDone {
		return redirect(step.Path()), nil
	}
	if v, ok := appViews[path]; ok {
		return render(v), nil
	}
	return render(ViewDashboard), nil
}

// verification handles the one-time landing from a confirmation link. ok is
// false for unknown status values, which fall through to normal routing.
func (n *Navigator) verification(ctx context.Context, r Route) (Decision, bool, error) {
	switch r.VerificationStatus {
	case VerificationFailed, VerificationFailedAlt:
		return redirect(PathAccountVerification), true, nil

	case VerificationAlreadyVerified:
		if r.User == nil {
			return redirect(PathLogin), true, nil
		}
		step, err := n.state.OnboardingStep(ctx, r.DeviceID)
		if err != nil {
			return Decision{}, true, err
		}
		if step == "" {
			step = StepDone
		}
		return redirect(step.Path()), true, nil

	case VerificationSuccess:
		if r.User == nil {
			if err := n.state.SetVerificationNotice(ctx, r.DeviceID, NoticeEmailConfirmed); err != nil {
				return Decision{}, true, err
			}
			return redirect(PathLogin), true, nil
		}
		stored, err := n.state.SignupEmail(ctx, r.DeviceID)
		if err != nil {
			return Decision{}, true, err
		}
		changing, err := n.state.ChangeAccount(ctx, r.DeviceID)
		if err != nil {
			return Decision{}, true, err
		}
		if changing || stored == "" || NormalizeEmail(stored) != NormalizeEmail(r.User.Email) {
			// Confirmed in a browser that did not start this signup.
			if err := n.state.SetVerificationNotice(ctx, r.DeviceID, NoticeSignInAgain); err != nil {
				return Decision{}, true, err
			}
			if err := n.state.SetChangeAccount(ctx, r.DeviceID, true); err != nil {
				return Decision{}, true, err
			}
			return Decision{Redirect: PathAccountVerification, SignOut: true}, true, nil
		}
		if err := n.state.SetChangeAccount(ctx, r.DeviceID, false); err != nil {
			return Decision{}, true, err
		}
		step, err := n.state.OnboardingStep(ctx, r.DeviceID)
		if err != nil {
			return Decision{}, true, err
		}
		if step == "" {
			if err := n.state.SetOnboardingStep(ctx, r.DeviceID, StepWelcome); err != nil {
				return Decision{}, true, err
			}
		}
		return redirect(StepWelcome.Path()), true, nil
	}
	return Decision{}, false, nil
}
