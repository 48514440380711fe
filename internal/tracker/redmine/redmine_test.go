package redmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/tracker"
)

func issueJSON(id int) string {
	return fmt.Sprintf(`{
		"id": %d,
		"project": {"id": 1, "name": "Backoffice"},
		"tracker": {"id": 2, "name": "Feature"},
		"status": {"id": 5, "name": "Closed"},
		"author": {"id": 9, "name": "Ann Author"},
		"assigned_to": {"id": 42, "name": "Jane Doe"},
		"subject": "Issue %d",
		"description": "Body %d",
		"created_on": "2024-10-01T08:00:00Z",
		"updated_on": "2024-10-25T12:33:46Z",
		"closed_on": "2024-10-25T12:33:46Z"
	}`, id, id, id)
}

// pagedServer serves total issues, honoring limit/offset, and counts requests.
func pagedServer(t *testing.T, total int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		var items []json.RawMessage
		for i := offset; i < offset+limit && i < total; i++ {
			items = append(items, json.RawMessage(issueJSON(i+1)))
		}
		resp := map[string]any{"issues": items, "total_count": total, "offset": offset, "limit": limit}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestIssues_QueryParams(t *testing.T) {
	var got map[string]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"path":           r.URL.Path,
			"status_id":      q.Get("status_id"),
			"limit":          q.Get("limit"),
			"offset":         q.Get("offset"),
			"assigned_to_id": q.Get("assigned_to_id"),
		}
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"issues":[],"total_count":0,"offset":0,"limit":25}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, PageSize: 25})
	_, err := c.Issues(context.Background(), "Basic abc", Query{Offset: 50, AssignedToID: 42})
	require.NoError(t, err)

	assert.Equal(t, DefaultIssuesEndpoint, got["path"])
	assert.Equal(t, "*", got["status_id"])
	assert.Equal(t, "25", got["limit"])
	assert.Equal(t, "50", got["offset"])
	assert.Equal(t, "42", got["assigned_to_id"])
	assert.Equal(t, "Basic abc", gotAuth)
}

func TestAllIssues_PagesUntilTotal(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 3, &calls)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, PageSize: 1})
	issues, err := c.AllIssues(context.Background(), "", Query{})
	require.NoError(t, err)

	assert.Len(t, issues, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAllIssues_EmptyResultIsOnePage(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 0, &calls)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	issues, err := c.AllIssues(context.Background(), "", Query{})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAllIssues_PageErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.AllIssues(context.Background(), "", Query{})
	var upErr *tracker.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusInternalServerError, upErr.StatusCode)
	assert.Equal(t, models.SourceRedmine, upErr.Source)
}

func TestNormalize(t *testing.T) {
	var raw Issue
	require.NoError(t, json.Unmarshal([]byte(issueJSON(7)), &raw))

	issue, err := Normalize(raw, "https://redmine.example.com/")
	require.NoError(t, err)

	assert.Equal(t, "7", issue.ID)
	assert.Equal(t, "7", issue.Key)
	assert.Equal(t, "Feature", issue.Type)
	assert.Equal(t, "Closed", issue.Status)
	assert.Equal(t, "Jane Doe", issue.Assignee)
	require.NotNil(t, issue.AssignedToID)
	assert.Equal(t, 42, *issue.AssignedToID)
	assert.Equal(t, "Issue 7", issue.Summary)
	assert.Equal(t, "Body 7", issue.Description)
	assert.Equal(t, "Backoffice", issue.Project)
	assert.Equal(t, ProjectTypeKey, issue.ProjectTypeKey)
	assert.Equal(t, "https://redmine.example.com/issues/7", issue.Link)
	assert.Equal(t, models.SourceRedmine, issue.Source)
	assert.True(t, issue.Updated.Equal(time.Date(2024, 10, 25, 12, 33, 46, 0, time.UTC)))
	require.NotNil(t, issue.Closed)
	require.NotNil(t, issue.Creator)
	assert.Equal(t, "Ann Author", *issue.Creator)
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		raw   Issue
		field string
	}{
		{"no id", Issue{}, "id"},
		{"no project", Issue{ID: 1}, "project"},
		{"no status", Issue{ID: 1, Project: &Ref{Name: "p"}}, "status"},
		{"no updated", Issue{ID: 1, Project: &Ref{Name: "p"}, Status: &Ref{Name: "New"}}, "updated_on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, "https://redmine")
			var malformed *tracker.MalformedPayloadError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.field, malformed.Field)
		})
	}
}
