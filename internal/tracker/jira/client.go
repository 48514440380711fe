package jira

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/period"
	"github.com/joescharf/evidence/internal/tracker"
)

const (
	DefaultSearchEndpoint = "/rest/api/2/search"
	DefaultMaxResults     = 100

	// DefaultJQLTemplate selects the issues of one assignee updated inside a window.
	DefaultJQLTemplate = `assignee = "{{.Username}}" AND updated >= "{{.StartDate}}" AND updated <= "{{.EndDate}}" ORDER BY updated ASC`

	jqlTimeLayout = "2006-01-02 15:04"
)

// Config describes the default Jira instance.
type Config struct {
	BaseURL        string
	SearchEndpoint string
	MaxResults     int
	Timeout        time.Duration
}

// SearchParams optionally override the configured instance for one call.
type SearchParams struct {
	BaseURL  string
	Endpoint string
	JQL      string
}

// Client calls the Jira search API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client for cfg, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.SearchEndpoint == "" {
		cfg.SearchEndpoint = DefaultSearchEndpoint
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return &Client{cfg: cfg, http: tracker.NewHTTPClient(cfg.Timeout)}
}

// BaseURL returns override when set, otherwise the configured base URL.
func (c *Client) BaseURL(override string) string {
	if strings.TrimSpace(override) != "" {
		return strings.TrimRight(override, "/")
	}
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

// Search runs one JQL query and returns the raw page.
func (c *Client) Search(ctx context.Context, authorization string, p SearchParams) (*SearchResponse, error) {
	if strings.TrimSpace(p.JQL) == "" {
		return nil, fmt.Errorf("jira: empty jql")
	}
	base := c.BaseURL(p.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("jira: empty base url")
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = c.cfg.SearchEndpoint
	}

	q := url.Values{}
	q.Set("jql", p.JQL)
	q.Set("maxResults", strconv.Itoa(c.cfg.MaxResults))
	u := tracker.JoinURL(base, endpoint) + "?" + q.Encode()

	var out SearchResponse
	if err := tracker.GetJSON(ctx, c.http, models.SourceJira, u, authorization, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type jqlData struct {
	Username  string
	StartDate string
	EndDate   string
}

// BuildJQL instantiates tmpl with the username and the window bounds.
// An empty tmpl falls back to DefaultJQLTemplate.
func BuildJQL(tmpl, username string, w period.Window) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultJQLTemplate
	}
	t, err := template.New("jql").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse jql template: %w", err)
	}
	var buf bytes.Buffer
	err = t.Execute(&buf, jqlData{
		Username:  username,
		StartDate: w.Start.Format(jqlTimeLayout),
		EndDate:   w.End.Format(jqlTimeLayout),
	})
	if err != nil {
		return "", fmt.Errorf("execute jql template: %w", err)
	}
	return buf.String(), nil
}
