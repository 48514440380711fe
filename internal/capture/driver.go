package capture

import (
	"context"

	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/tracker"
)

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int64
	Height int64
}

// LoginForm locates a tracker's login form fields.
type LoginForm struct {
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
}

// Profile is the per-source browsing setup.
type Profile struct {
	Viewport Viewport
	Login    LoginForm
	// PostLoginScrollY is where the page is scrolled after logging in.
	PostLoginScrollY int64
}

// DefaultRedmineScrollY is the post-login offset applied to Redmine pages.
const DefaultRedmineScrollY = 300

// DefaultProfiles returns the stock Jira and Redmine profiles.
func DefaultProfiles() map[models.Source]Profile {
	return map[models.Source]Profile{
		models.SourceJira: {
			Viewport: Viewport{Width: 1200, Height: 1000},
			Login: LoginForm{
				UsernameSelector: "#login-form-username",
				PasswordSelector: "#login-form-password",
				SubmitSelector:   "#login-form-submit",
			},
			PostLoginScrollY: 0,
		},
		models.SourceRedmine: {
			Viewport: Viewport{Width: 1600, Height: 1400},
			Login: LoginForm{
				UsernameSelector: "#username",
				PasswordSelector: "#password",
				SubmitSelector:   "#login-submit",
			},
			PostLoginScrollY: DefaultRedmineScrollY,
		},
	}
}

// Launcher starts a browser.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser owns the shared login state of all its pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browser tab.
type Page interface {
	SetViewport(v Viewport) error
	Navigate(url string) error
	// LoginRequired reports whether the login form is on the current page.
	LoginRequired(form LoginForm) (bool, error)
	// Login fills and submits the form and waits for it to go away.
	Login(form LoginForm, creds tracker.Credentials) error
	ScrollTo(y int64) error
	// Screenshot returns a full-page image.
	Screenshot() ([]byte, error)
	Close() error
}
