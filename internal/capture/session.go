// Package capture takes one screenshot per issue through a logged-in browser.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/tracker"
)

// State is the session's position in its lifecycle.
type State int

const (
	NotStarted State = iota
	BrowserLaunched
	LoggingIn
	Capturing
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case BrowserLaunched:
		return "browser_launched"
	case LoggingIn:
		return "logging_in"
	case Capturing:
		return "capturing"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CaptureError records a failed step. Step is one of launch, login or capture.
type CaptureError struct {
	Source models.Source
	Key    string
	Step   string
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", strings.ToLower(string(e.Source)), e.Step, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", strings.ToLower(string(e.Source)), e.Step, e.Key, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Shot is the screenshot of one issue.
type Shot struct {
	Source models.Source
	Key    string
	Link   string
	Image  []byte
}

// Shots collects a session's images in capture order plus what failed.
type Shots struct {
	Items    []Shot
	Failures []*CaptureError
}

// BySource returns the shots of one source, preserving order.
func (s *Shots) BySource(src models.Source) []Shot {
	if s == nil {
		return nil
	}
	var out []Shot
	for _, shot := range s.Items {
		if shot.Source == src {
			out = append(out, shot)
		}
	}
	return out
}

// Session drives one browser through the Jira group then the Redmine group.
// It is single use and strictly sequential: at most one page is open.
type Session struct {
	launcher Launcher
	profiles map[models.Source]Profile
	log      *slog.Logger
	state    State
	history  []State
}

// NewSession returns a session; nil profiles means DefaultProfiles.
func NewSession(l Launcher, profiles map[models.Source]Profile, log *slog.Logger) *Session {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Session{launcher: l, profiles: profiles, log: logger.OrDefault(log), history: []State{NotStarted}}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// History returns every state the session has entered, in order.
func (s *Session) History() []State { return append([]State(nil), s.history...) }

func (s *Session) enter(st State) {
	s.state = st
	s.history = append(s.history, st)
}

// Run captures every issue. Only a launch failure or a cancelled context
// is returned as an error; login and per-issue failures are recorded in
// Shots.Failures. The browser is closed on every path.
func (s *Session) Run(ctx context.Context, issues []models.UserIssue, creds tracker.Credentials) (shots *Shots, err error) {
	if s.state != NotStarted {
		return nil, fmt.Errorf("capture session already used (state %s)", s.state)
	}

	browser, err := s.launcher.Launch(ctx)
	if err != nil {
		s.enter(Done)
		return nil, &CaptureError{Step: "launch", Err: err}
	}
	s.enter(BrowserLaunched)
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			s.log.Warn("close browser", "error", cerr)
		}
		s.enter(Done)
	}()

	shots = &Shots{}
	for _, src := range models.Sources {
		group := groupOf(issues, src)
		if len(group) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return shots, err
		}
		profile, ok := s.profiles[src]
		if !ok {
			profile = DefaultProfiles()[src]
		}

		s.enter(LoggingIn)
		if err := s.login(ctx, browser, src, profile, group[0], creds); err != nil {
			ce := &CaptureError{Source: src, Key: group[0].Key, Step: "login", Err: err}
			s.log.Warn("login failed, skipping group", "source", src, "error", err)
			shots.Failures = append(shots.Failures, ce)
			continue
		}

		s.enter(Capturing)
		for _, issue := range group {
			if err := ctx.Err(); err != nil {
				return shots, err
			}
			img, err := s.captureOne(ctx, browser, profile, issue)
			if err != nil {
				ce := &CaptureError{Source: src, Key: issue.Key, Step: "capture", Err: err}
				s.log.Warn("screenshot failed", "source", src, "key", issue.Key, "error", err)
				shots.Failures = append(shots.Failures, ce)
				continue
			}
			shots.Items = append(shots.Items, Shot{Source: src, Key: issue.Key, Link: issue.Link, Image: img})
		}
	}

	s.log.Info("capture finished", "images", len(shots.Items), "failures", len(shots.Failures))
	return shots, nil
}

func (s *Session) login(ctx context.Context, b Browser, src models.Source, p Profile, first models.UserIssue, creds tracker.Credentials) error {
	page, err := b.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer closePage(s.log, page)

	if err := page.SetViewport(p.Viewport); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if err := page.Navigate(first.Link); err != nil {
		return fmt.Errorf("navigate %s: %w", first.Link, err)
	}
	required, err := page.LoginRequired(p.Login)
	if err != nil {
		return fmt.Errorf("detect login form: %w", err)
	}
	if !required {
		return nil
	}

	s.log.Debug("logging in", "source", src)
	if err := page.Login(p.Login, creds); err != nil {
		return err
	}
	if err := page.ScrollTo(p.PostLoginScrollY); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (s *Session) captureOne(ctx context.Context, b Browser, p Profile, issue models.UserIssue) ([]byte, error) {
	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer closePage(s.log, page)

	if err := page.SetViewport(p.Viewport); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.Navigate(issue.Link); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	return page.Screenshot()
}

func closePage(log *slog.Logger, p Page) {
	if err := p.Close(); err != nil {
		log.Debug("close page", "error", err)
	}
}

func groupOf(issues []models.UserIssue, src models.Source) []models.UserIssue {
	var out []models.UserIssue
	for _, issue := range issues {
		if issue.Source == src {
			out = append(out, issue)
		}
	}
	return out
}

// Capturer starts a fresh Session for every call.
type Capturer struct {
	Launcher Launcher
	Profiles map[models.Source]Profile
	Log      *slog.Logger
}

// Capture runs one session over issues.
func (c Capturer) Capture(ctx context.Context, issues []models.UserIssue, creds tracker.Credentials) (*Shots, error) {
	return NewSession(c.Launcher, c.Profiles, c.Log).Run(ctx, issues, creds)
}
