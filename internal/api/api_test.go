package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/evidence/internal/aggregate"
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/period"
	"github.com/joescharf/evidence/internal/store"
	"github.com/joescharf/evidence/internal/syncer"
	"github.com/joescharf/evidence/internal/tracker"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAggregator struct {
	got aggregate.Request
	err error
}

func (f *fakeAggregator) Aggregate(_ context.Context, req aggregate.Request) (*models.DataIssue, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	d := &models.DataIssue{Month: period.Label(req.Month), UserDisplayName: "Jane Doe", Project: "Portal"}
	d.Add(models.UserIssue{Key: "PRJ-1", Summary: "Login page", Link: "https://jira/browse/PRJ-1", Source: models.SourceJira})
	return d, nil
}

type fakeGenerator struct {
	months int
	years  int
}

func (f *fakeGenerator) CreateMonth(_ context.Context, req aggregate.Request) (*models.Evidence, error) {
	f.months++
	return &models.Evidence{Month: period.Label(req.Month), Year: req.Year, Total: 1, Path: "/out/doc.docx"}, nil
}

func (f *fakeGenerator) CreateYear(_ context.Context, req aggregate.Request) (*models.YearReport, error) {
	f.years++
	return &models.YearReport{
		UserDisplayName:  "Jane Doe",
		EvidencesCreated: models.CreatedEvidences{Total: req.Month},
	}, nil
}

type fakeSync struct {
	gotAuth string
}

func (f *fakeSync) Run(_ context.Context, authorization string) (*syncer.Result, error) {
	f.gotAuth = authorization
	return &syncer.Result{Fetched: 2, CreatedRegisters: 2, Inserted: 2}, nil
}

type testServer struct {
	router *gin.Engine
	store  store.Store
	agg    *fakeAggregator
	gen    *fakeGenerator
	sync   *fakeSync
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	ts := &testServer{store: s, agg: &fakeAggregator{}, gen: &fakeGenerator{}, sync: &fakeSync{}}
	srv := NewServer(s, ts.agg, ts.gen, ts.sync, Config{Role: "Developer"}, nil)
	ts.router = srv.Router()
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth("jdoe", "secret")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	ts := setupTestServer(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBasicAuthRequired(t *testing.T) {
	ts := setupTestServer(t)
	req := httptest.NewRequest("GET", "/api/v1/templates", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
}

func TestAggregateIssues(t *testing.T) {
	ts := setupTestServer(t)
	body := `{"month":2,"year":2024,"jira":{"username":"jdoe"},"redmine":{"assignedToId":7}}`
	w := ts.do("POST", "/api/v1/issues", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data models.DataIssue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, "Febrero", data.Month)
	assert.Equal(t, 1, data.Total)

	assert.Equal(t, tracker.Credentials{Username: "jdoe", Password: "secret"}, ts.agg.got.Credentials)
	require.NotNil(t, ts.agg.got.Jira)
	assert.Equal(t, "jdoe", ts.agg.got.Jira.Username)
	require.NotNil(t, ts.agg.got.Redmine)
	assert.Equal(t, 7, ts.agg.got.Redmine.AssignedToID)
}

func TestAggregateIssues_Validation(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"month out of range", `{"month":13,"year":2024,"jira":{"username":"jdoe"}}`},
		{"missing year", `{"month":1,"jira":{"username":"jdoe"}}`},
		{"no source", `{"month":1,"year":2024}`},
		{"jira without username", `{"month":1,"year":2024,"jira":{}}`},
		{"redmine without assignee", `{"month":1,"year":2024,"redmine":{"fromStore":true}}`},
		{"bad json", `{"month":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do("POST", "/api/v1/issues", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestAggregateIssues_UpstreamIsBadGateway(t *testing.T) {
	ts := setupTestServer(t)
	ts.agg.err = &tracker.UpstreamError{Source: models.SourceJira, StatusCode: 401, Body: "unauthorized"}

	w := ts.do("POST", "/api/v1/issues", `{"month":1,"year":2024,"jira":{"username":"jdoe"}}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "401")
}

func TestComposeEvidence(t *testing.T) {
	ts := setupTestServer(t)
	w := ts.do("POST", "/api/v1/evidence", `{"month":2,"year":2023,"jira":{"username":"jdoe"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ev models.Evidence
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ev))
	assert.Equal(t, "28/02/2023", ev.Date)
	assert.Equal(t, "Developer", ev.Role)
	require.Len(t, ev.Issues, 1)
	assert.Equal(t, "PRJ-1 - Login page", ev.Issues[0].Title)
}

func TestCreateTemplate(t *testing.T) {
	ts := setupTestServer(t)
	w := ts.do("POST", "/api/v1/templates", `{"month":3,"year":2024,"jira":{"username":"jdoe"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, ts.gen.months)

	w = ts.do("POST", "/api/v1/templates/year", `{"month":3,"year":2024,"jira":{"username":"jdoe"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report models.YearReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 3, report.EvidencesCreated.Total)
	assert.Equal(t, 1, ts.gen.years)
}

func TestTemplates_ListAndGet(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	for _, tmpl := range []*models.UserTemplate{
		{Username: "jdoe", Path: "/out/a.docx", Source: "JIRA", Year: 2024, Month: 1},
		{Username: "jdoe", Path: "/out/b.docx", Source: "JIRA", Year: 2023, Month: 12},
		{Username: "other", Path: "/out/c.docx", Source: "REDMINE", Year: 2024, Month: 1},
	} {
		_, err := ts.store.UpsertTemplate(ctx, tmpl)
		require.NoError(t, err)
	}

	w := ts.do("GET", "/api/v1/templates", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all []*models.UserTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2, "only the caller's templates")

	w = ts.do("GET", "/api/v1/templates?year=2024", "")
	require.Equal(t, http.StatusOK, w.Code)
	var filtered []*models.UserTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "/out/a.docx", filtered[0].Path)

	w = ts.do("GET", "/api/v1/templates/"+filtered[0].ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do("GET", "/api/v1/templates/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do("GET", "/api/v1/templates?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTemplates_OtherUserIsNotFound(t *testing.T) {
	ts := setupTestServer(t)
	tmpl := &models.UserTemplate{Username: "other", Path: "/out/c.docx", Year: 2024, Month: 1}
	_, err := ts.store.UpsertTemplate(context.Background(), tmpl)
	require.NoError(t, err)

	templates, err := ts.store.ListTemplates(context.Background(), store.TemplateFilter{Username: "other"})
	require.NoError(t, err)
	require.Len(t, templates, 1)

	w := ts.do("GET", "/api/v1/templates/"+templates[0].ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncRedmine(t *testing.T) {
	ts := setupTestServer(t)
	w := ts.do("POST", "/api/v1/redmine/sync", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res syncer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2, res.CreatedRegisters)
	assert.Equal(t, tracker.Credentials{Username: "jdoe", Password: "secret"}.Authorization(), ts.sync.gotAuth)
}

func TestSyncRedmine_NotConfigured(t *testing.T) {
	ts := setupTestServer(t)
	ts.router = NewServer(ts.store, ts.agg, ts.gen, nil, Config{}, nil).Router()

	w := ts.do("POST", "/api/v1/redmine/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRedmineIssues(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	seven := 7
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"100", "101", "102"} {
		_, err := ts.store.UpsertIssue(ctx, &models.UserIssue{
			ID:           id,
			Key:          id,
			Type:         "Bug",
			Status:       "New",
			Summary:      "Issue " + id,
			Project:      "Backoffice",
			Link:         "https://redmine/issues/" + id,
			AssignedToID: &seven,
			Created:      base,
			Updated:      base.AddDate(0, 0, i*10),
			Source:       models.SourceRedmine,
		})
		require.NoError(t, err)
	}

	w := ts.do("GET", "/api/v1/redmine/issues?assignedToId=7", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var issues []*models.UserIssue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issues))
	require.Len(t, issues, 3)
	assert.Equal(t, "102", issues[0].ID, "most recently updated first")

	w = ts.do("GET", "/api/v1/redmine/issues?from=2024-03-01&to=2024-03-20", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	issues = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issues))
	require.Len(t, issues, 2, "to includes the whole day")

	w = ts.do("GET", "/api/v1/redmine/issues?assignedToId=8", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = ts.do("GET", "/api/v1/redmine/issues/101", "")
	require.Equal(t, http.StatusOK, w.Code)
	var issue models.UserIssue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	assert.Equal(t, "Issue 101", issue.Summary)
	assert.NotEmpty(t, issue.RecordID)

	w = ts.do("GET", "/api/v1/redmine/issues/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do("GET", "/api/v1/redmine/issues?from=March", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t)
	req := httptest.NewRequest("OPTIONS", "/api/v1/issues", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
