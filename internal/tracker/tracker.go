// Package tracker holds what the Jira and Redmine adapters share: request
// credentials, the error kinds they report, and the JSON GET helper.
package tracker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/evidence/internal/models"
)

// DefaultTimeout applies to every tracker HTTP call.
const DefaultTimeout = 5 * time.Second

// Credentials are the decoded basic-auth pair of the caller. They are
// forwarded to the trackers and typed into the browser login forms.
type Credentials struct {
	Username string
	Password string
}

// Authorization returns the Basic authorization header value.
func (c Credentials) Authorization() string {
	raw := c.Username + ":" + c.Password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Empty reports whether no username was supplied.
func (c Credentials) Empty() bool { return c.Username == "" }

// UpstreamError is returned when a tracker call fails at the network or
// HTTP level. It is never retried.
type UpstreamError struct {
	Source     models.Source
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", strings.ToLower(string(e.Source)), e.Err)
	}
	return fmt.Sprintf("%s api status=%d body=%s", strings.ToLower(string(e.Source)), e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MalformedPayloadError is returned when a provider record lacks a field the
// canonical form needs. Callers skip the record and continue.
type MalformedPayloadError struct {
	Source models.Source
	ID     string
	Field  string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s issue %q: missing %s", strings.ToLower(string(e.Source)), e.ID, e.Field)
}

// NewHTTPClient returns a client with the given timeout, or DefaultTimeout when zero.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// JoinURL joins a base URL and a path with exactly one slash between them.
func JoinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// GetJSON performs an authorized GET and decodes the JSON body into out.
func GetJSON(ctx context.Context, hc *http.Client, src models.Source, u, authorization string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", strings.ToLower(string(src)), err)
	}
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &UpstreamError{Source: src, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Source: src, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Source: src, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
