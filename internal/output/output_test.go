package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/evidence/internal/models"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would create %s", "file")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would create file")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would create %s", "file")
	assert.Empty(t, errOut.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestStatusColor(t *testing.T) {
	assert.NotEmpty(t, StatusColor("New"))
	assert.NotEmpty(t, StatusColor("In Progress"))
	assert.NotEmpty(t, StatusColor("Resuelta"))
	assert.NotEmpty(t, StatusColor("Cerrada"))
	assert.Equal(t, "Feedback", StatusColor("Feedback"))
}

func TestSourceColor(t *testing.T) {
	assert.Contains(t, SourceColor(models.SourceJira), "JIRA")
	assert.Contains(t, SourceColor(models.SourceRedmine), "REDMINE")
	assert.Equal(t, "GITHUB", SourceColor("GITHUB"))
}

func TestCountColor(t *testing.T) {
	assert.Contains(t, CountColor(0), "0")
	assert.Contains(t, CountColor(3), "3")
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Name", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"JIRA", "Done"})
	table.Append([]string{"REDMINE", "New"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "JIRA"), "table output should contain sources")
	assert.True(t, strings.Contains(result, "REDMINE"), "table output should contain sources")
}

func TestIssuesTable(t *testing.T) {
	u, out, _ := newTestUI()
	err := u.IssuesTable([]models.UserIssue{
		{Source: models.SourceJira, Key: "PRJ-1", Status: "Done", Summary: "Login page", Updated: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)},
		{Source: models.SourceRedmine, Key: "812", Status: "New", Summary: strings.Repeat("x", 100)},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "PRJ-1")
	assert.Contains(t, out.String(), "2024-02-03")
	assert.Contains(t, out.String(), "…")
}

func TestYearReportTable(t *testing.T) {
	u, out, _ := newTestUI()
	err := u.YearReportTable(&models.YearReport{
		EvidencesCreated:    models.CreatedEvidences{Total: 1, Items: []models.EvidenceSummary{{Month: "Enero", Date: "31/01/2024", Total: 4, Path: "/out/a.docx"}}},
		EvidencesWithErrors: models.FailedEvidences{Total: 1, Items: []models.EvidenceFailure{{Date: "02/2024", Error: "jira api status=401"}}},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Enero")
	assert.Contains(t, out.String(), "02/2024")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "añoñ…", truncate("añoñoño", 5))
}
