package jira

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SearchResponse is the body of GET /rest/api/2/search.
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue is a raw Jira issue as returned by search.
type Issue struct {
	ID     string  `json:"id"`
	Key    string  `json:"key"`
	Fields *Fields `json:"fields"`
}

// Fields holds the nested issue fields the canonical form is built from.
type Fields struct {
	IssueType      *Named          `json:"issuetype"`
	Status         *Named          `json:"status"`
	Assignee       *User           `json:"assignee"`
	Creator        *User           `json:"creator"`
	Reporter       *User           `json:"reporter"`
	Summary        string          `json:"summary"`
	Description    json.RawMessage `json:"description"`
	Project        *Project        `json:"project"`
	Created        Time            `json:"created"`
	Updated        Time            `json:"updated"`
	ResolutionDate *Time           `json:"resolutiondate"`
}

type Named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type Project struct {
	ID             string `json:"id"`
	Key            string `json:"key"`
	Name           string `json:"name"`
	ProjectTypeKey string `json:"projectTypeKey"`
}

// timeLayouts are tried in order; Jira Server emits the first one.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

// Time decodes Jira timestamps such as "2024-10-25T12:33:46.000+0000".
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("jira: unrecognized time %q", s)
}

// descriptionText flattens a description that is either a plain string
// (API v2) or an Atlassian Document Format tree (API v3).
func descriptionText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return ""
	}
	var parts []string
	collectText(node, &parts)
	return strings.TrimSpace(strings.Join(parts, " "))
}

func collectText(node any, parts *[]string) {
	switch v := node.(type) {
	case map[string]any:
		if text, ok := v["text"].(string); ok && text != "" {
			*parts = append(*parts, text)
		}
		if content, ok := v["content"].([]any); ok {
			for _, child := range content {
				collectText(child, parts)
			}
		}
	case []any:
		for _, child := range v {
			collectText(child, parts)
		}
	}
}
