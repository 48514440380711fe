package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/evidence/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(i int) *int { return &i }

func redmineIssue(id string, assignee int, updated time.Time) *models.UserIssue {
	return &models.UserIssue{
		ID:           id,
		Key:          id,
		Type:         "Feature",
		Status:       "New",
		Assignee:     "Jane Doe",
		AssignedToID: intPtr(assignee),
		Summary:      "Issue " + id,
		Project:      "Backoffice",
		Link:         "https://redmine.example.com/issues/" + id,
		Created:      updated.Add(-24 * time.Hour),
		Updated:      updated,
		Source:       models.SourceRedmine,
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ListIssues(context.Background(), IssueFilter{})
	assert.NoError(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	assert.Error(t, err)
}

// --- Issues ---

func TestUpsertIssue_InsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	updated := time.Date(2024, 10, 25, 12, 33, 46, 0, time.UTC)

	issue := redmineIssue("101", 42, updated)
	created, err := s.UpsertIssue(ctx, issue)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, issue.RecordID)
	firstRecordID := issue.RecordID
	firstCreatedAt := issue.RecordCreatedAt

	// Same natural key: update in place, creation audit preserved.
	again := redmineIssue("101", 42, updated.Add(time.Hour))
	again.Status = "Closed"
	closed := updated.Add(time.Hour)
	again.Closed = &closed
	created, err = s.UpsertIssue(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstRecordID, again.RecordID)

	got, err := s.GetIssue(ctx, firstRecordID)
	require.NoError(t, err)
	assert.Equal(t, "Closed", got.Status)
	assert.Equal(t, models.SourceRedmine, got.Source)
	assert.True(t, got.Updated.Equal(updated.Add(time.Hour)))
	require.NotNil(t, got.Closed)
	require.NotNil(t, got.AssignedToID)
	assert.Equal(t, 42, *got.AssignedToID)
	assert.WithinDuration(t, firstCreatedAt, got.RecordCreatedAt, time.Second)

	all, err := s.ListIssues(ctx, IssueFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpsertIssue_SameIDDifferentSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	r := redmineIssue("7", 1, now)
	j := redmineIssue("7", 1, now)
	j.Source = models.SourceJira
	j.AssignedToID = nil

	_, err := s.UpsertIssue(ctx, r)
	require.NoError(t, err)
	created, err := s.UpsertIssue(ctx, j)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestUpsertIssue_RequiresKey(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpsertIssue(context.Background(), &models.UserIssue{Source: models.SourceRedmine})
	assert.Error(t, err)
}

func TestGetIssue_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetIssue(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetIssueByExternalID(context.Background(), models.SourceRedmine, "999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetIssueByExternalID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertIssue(ctx, redmineIssue("55", 3, time.Now()))
	require.NoError(t, err)

	got, err := s.GetIssueByExternalID(ctx, models.SourceRedmine, "55")
	require.NoError(t, err)
	assert.Equal(t, "Issue 55", got.Summary)
}

func TestListIssues_FilterSortPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"1", "2", "3", "4"} {
		_, err := s.UpsertIssue(ctx, redmineIssue(id, 42, base.Add(time.Duration(i)*24*time.Hour)))
		require.NoError(t, err)
	}
	_, err := s.UpsertIssue(ctx, redmineIssue("5", 99, base))
	require.NoError(t, err)

	// Sorted by update time, newest first.
	got, err := s.ListIssues(ctx, IssueFilter{Source: models.SourceRedmine, AssignedToID: 42})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(got))

	got, err = s.ListIssues(ctx, IssueFilter{AssignedToID: 42, Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2"}, ids(got))

	got, err = s.ListIssues(ctx, IssueFilter{AssignedToID: 42, Skip: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(got))

	got, err = s.ListIssues(ctx, IssueFilter{
		UpdatedFrom: base.Add(24 * time.Hour),
		UpdatedTo:   base.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2"}, ids(got))

	got, err = s.ListIssues(ctx, IssueFilter{Source: models.SourceJira})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func ids(issues []*models.UserIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.ID)
	}
	return out
}

// --- Templates ---

func TestUpsertTemplate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := &models.UserTemplate{
		Username:                "jdoe",
		Path:                    "/out/EVIDENCIAS 2024/Jane Doe/MARZO/Plantilla Evidencias - marzo.docx",
		EvidenceUserDisplayName: "Jane Doe",
		Source:                  "JIRA",
		Year:                    2024,
		Month:                   3,
	}
	created, err := s.UpsertTemplate(ctx, tpl)
	require.NoError(t, err)
	assert.True(t, created)
	firstID := tpl.ID

	again := *tpl
	again.ID = ""
	again.Source = "JIRA,REDMINE"
	created, err = s.UpsertTemplate(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, again.ID)

	got, err := s.GetTemplate(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "JIRA,REDMINE", got.Source)
	assert.Equal(t, 3, got.Month)

	_, err = s.GetTemplate(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTemplates_Filter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, tpl := range []*models.UserTemplate{
		{Username: "jdoe", Path: "/a", Year: 2023, Month: 12},
		{Username: "jdoe", Path: "/b", Year: 2024, Month: 1},
		{Username: "ann", Path: "/c", Year: 2024, Month: 1},
	} {
		_, err := s.UpsertTemplate(ctx, tpl)
		require.NoError(t, err)
	}

	got, err := s.ListTemplates(ctx, TemplateFilter{Username: "jdoe"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListTemplates(ctx, TemplateFilter{Year: 2024})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListTemplates(ctx, TemplateFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", rebind("a = ? AND b = ?"))
}
