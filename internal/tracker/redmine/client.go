package redmine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/tracker"
)

const (
	DefaultIssuesEndpoint = "/issues.json"
	DefaultPageSize       = 100
	DefaultStatusID       = "*"
)

// Config describes the Redmine instance.
type Config struct {
	BaseURL        string
	IssuesEndpoint string
	PageSize       int
	StatusID       string
	Timeout        time.Duration
}

// Query selects one page of issues. Zero values fall back to the config.
type Query struct {
	StatusID     string
	Limit        int
	Offset       int
	AssignedToID int
}

// Client calls the Redmine issues API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client for cfg, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.IssuesEndpoint == "" {
		cfg.IssuesEndpoint = DefaultIssuesEndpoint
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.StatusID == "" {
		cfg.StatusID = DefaultStatusID
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: tracker.NewHTTPClient(cfg.Timeout)}
}

func (c *Client) BaseURL() string { return c.cfg.BaseURL }

func (c *Client) PageSize() int { return c.cfg.PageSize }

// Issues fetches a single page.
func (c *Client) Issues(ctx context.Context, authorization string, q Query) (*IssuesResponse, error) {
	if c.cfg.BaseURL == "" {
		return nil, fmt.Errorf("redmine: empty base url")
	}
	if q.StatusID == "" {
		q.StatusID = c.cfg.StatusID
	}
	if q.Limit <= 0 {
		q.Limit = c.cfg.PageSize
	}

	v := url.Values{}
	v.Set("status_id", q.StatusID)
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	if q.AssignedToID > 0 {
		v.Set("assigned_to_id", strconv.Itoa(q.AssignedToID))
	}
	u := tracker.JoinURL(c.cfg.BaseURL, c.cfg.IssuesEndpoint) + "?" + v.Encode()

	var out IssuesResponse
	if err := tracker.GetJSON(ctx, c.http, models.SourceRedmine, u, authorization, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllIssues pages through Issues until offset reaches total_count.
// A page error aborts and is returned.
func (c *Client) AllIssues(ctx context.Context, authorization string, q Query) ([]Issue, error) {
	if q.Limit <= 0 {
		q.Limit = c.cfg.PageSize
	}
	var all []Issue
	for offset := 0; ; {
		q.Offset = offset
		page, err := c.Issues(ctx, authorization, q)
		if err != nil {
			return nil, fmt.Errorf("fetch redmine page offset=%d: %w", offset, err)
		}
		all = append(all, page.Issues...)
		offset += q.Limit
		if offset >= page.TotalCount {
			return all, nil
		}
	}
}
