// Package aggregate merges one user's Jira and Redmine issues for a month.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/period"
	"github.com/joescharf/evidence/internal/store"
	"github.com/joescharf/evidence/internal/tracker"
	"github.com/joescharf/evidence/internal/tracker/jira"
	"github.com/joescharf/evidence/internal/tracker/redmine"
)

// JiraSearcher is the part of jira.Client the service uses.
type JiraSearcher interface {
	Search(ctx context.Context, authorization string, p jira.SearchParams) (*jira.SearchResponse, error)
	BaseURL(override string) string
}

// RedmineFetcher is the part of redmine.Client the service uses.
type RedmineFetcher interface {
	AllIssues(ctx context.Context, authorization string, q redmine.Query) ([]redmine.Issue, error)
	BaseURL() string
}

// IssueLister reads previously synced issues.
type IssueLister interface {
	ListIssues(ctx context.Context, filter store.IssueFilter) ([]*models.UserIssue, error)
}

// JiraParams enables the Jira branch.
type JiraParams struct {
	Username string `json:"username" binding:"required"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	JQL      string `json:"jql,omitempty"`
}

// RedmineParams enables the Redmine branch.
type RedmineParams struct {
	AssignedToID int  `json:"assignedToId" binding:"required,min=1"`
	FromStore    bool `json:"fromStore,omitempty"`
}

// Request asks for one month of issues. Either branch, or both, may be set.
type Request struct {
	Month       int
	Year        int
	Credentials tracker.Credentials
	Jira        *JiraParams
	Redmine     *RedmineParams
}

// Config carries the service's configurable behavior.
type Config struct {
	JQLTemplate  string
	FallbackMode FallbackMode
}

// Service runs the fetch, normalize, filter and merge steps.
type Service struct {
	jira    JiraSearcher
	redmine RedmineFetcher
	issues  IssueLister
	cfg     Config
	log     *slog.Logger
}

// NewService wires a Service. Any collaborator may be nil when the
// corresponding branch is never requested.
func NewService(j JiraSearcher, r RedmineFetcher, issues IssueLister, cfg Config, log *slog.Logger) *Service {
	if cfg.FallbackMode == "" {
		cfg.FallbackMode = FallbackLegacy
	}
	return &Service{jira: j, redmine: r, issues: issues, cfg: cfg, log: logger.OrDefault(log)}
}

// ErrNoSource is returned when a request enables neither branch.
var ErrNoSource = errors.New("request must include jira or redmine parameters")

// Aggregate returns the merged DataIssue with Jira issues first.
func (s *Service) Aggregate(ctx context.Context, req Request) (*models.DataIssue, error) {
	w, err := period.MonthOf(req.Year, req.Month)
	if err != nil {
		return nil, err
	}
	if req.Jira == nil && req.Redmine == nil {
		return nil, ErrNoSource
	}

	data := &models.DataIssue{Month: period.Label(req.Month), Issues: []models.UserIssue{}}

	if req.Jira != nil {
		if err := s.mergeJira(ctx, req, w, data); err != nil {
			return nil, err
		}
	}
	if req.Redmine != nil {
		if err := s.mergeRedmine(ctx, req, w, data); err != nil {
			return nil, err
		}
	}

	s.log.Info("issues aggregated",
		"month", req.Month, "year", req.Year, "total", data.Total,
		"jira", len(data.BySource(models.SourceJira)), "redmine", len(data.BySource(models.SourceRedmine)))
	return data, nil
}

func (s *Service) mergeJira(ctx context.Context, req Request, w period.Window, data *models.DataIssue) error {
	if s.jira == nil {
		return fmt.Errorf("jira is not configured")
	}
	p := req.Jira
	jql := p.JQL
	if strings.TrimSpace(jql) == "" {
		username := p.Username
		if username == "" {
			username = req.Credentials.Username
		}
		var err error
		if jql, err = jira.BuildJQL(s.cfg.JQLTemplate, username, w); err != nil {
			return err
		}
	}

	resp, err := s.jira.Search(ctx, req.Credentials.Authorization(), jira.SearchParams{
		BaseURL:  p.BaseURL,
		Endpoint: p.Endpoint,
		JQL:      jql,
	})
	if err != nil {
		return err
	}

	base := s.jira.BaseURL(p.BaseURL)
	for _, raw := range resp.Issues {
		issue, err := jira.Normalize(raw, base)
		if err != nil {
			if skipMalformed(s.log, err) {
				continue
			}
			return err
		}
		if len(data.Issues) == 0 {
			data.UserDisplayName = issue.Assignee
			data.Project = issue.Project
		}
		data.Add(issue)
	}
	return nil
}

func (s *Service) mergeRedmine(ctx context.Context, req Request, w period.Window, data *models.DataIssue) error {
	issues, err := s.redmineIssues(ctx, req, w)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		if !w.Contains(issue.Updated) {
			continue
		}
		applyFallback(s.cfg.FallbackMode, data, issue)
		data.Add(issue)
	}
	return nil
}

func (s *Service) redmineIssues(ctx context.Context, req Request, w period.Window) ([]models.UserIssue, error) {
	p := req.Redmine
	if p.FromStore {
		if s.issues == nil {
			return nil, fmt.Errorf("issue store is not configured")
		}
		stored, err := s.issues.ListIssues(ctx, store.IssueFilter{
			Source:       models.SourceRedmine,
			AssignedToID: p.AssignedToID,
			UpdatedFrom:  w.Start,
			UpdatedTo:    w.End,
		})
		if err != nil {
			return nil, err
		}
		out := make([]models.UserIssue, 0, len(stored))
		for _, issue := range stored {
			out = append(out, *issue)
		}
		return out, nil
	}

	if s.redmine == nil {
		return nil, fmt.Errorf("redmine is not configured")
	}
	raws, err := s.redmine.AllIssues(ctx, req.Credentials.Authorization(), redmine.Query{AssignedToID: p.AssignedToID})
	if err != nil {
		return nil, err
	}
	out := make([]models.UserIssue, 0, len(raws))
	for _, raw := range raws {
		issue, err := redmine.Normalize(raw, s.redmine.BaseURL())
		if err != nil {
			if skipMalformed(s.log, err) {
				continue
			}
			return nil, err
		}
		out = append(out, issue)
	}
	return out, nil
}

// skipMalformed logs and reports true for per-record payload errors.
func skipMalformed(log *slog.Logger, err error) bool {
	var malformed *tracker.MalformedPayloadError
	if !errors.As(err, &malformed) {
		return false
	}
	log.Warn("skipping malformed issue", "source", malformed.Source, "id", malformed.ID, "field", malformed.Field)
	return true
}
