package output

import (
	"fmt"
	"strconv"

	"github.com/joescharf/evidence/internal/models"
)

const dateLayout = "2006-01-02"

// IssuesTable renders aggregated issues.
func (u *UI) IssuesTable(issues []models.UserIssue) error {
	table := u.Table([]string{"SOURCE", "KEY", "STATUS", "UPDATED", "PROJECT", "SUMMARY"})
	for _, i := range issues {
		if err := table.Append([]string{
			SourceColor(i.Source),
			i.Key,
			StatusColor(i.Status),
			i.Updated.Format(dateLayout),
			i.Project,
			truncate(i.Summary, 60),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// TemplatesTable renders template records.
func (u *UI) TemplatesTable(templates []*models.UserTemplate) error {
	table := u.Table([]string{"ID", "PERIOD", "SOURCE", "NAME", "UPDATED", "PATH"})
	for _, t := range templates {
		if err := table.Append([]string{
			t.ID,
			fmt.Sprintf("%02d/%d", t.Month, t.Year),
			t.Source,
			t.EvidenceUserDisplayName,
			t.UpdatedAt.Local().Format("2006-01-02 15:04"),
			t.Path,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// YearReportTable renders the created months followed by the failed ones.
func (u *UI) YearReportTable(r *models.YearReport) error {
	table := u.Table([]string{"MONTH", "DATE", "ISSUES", "RESULT"})
	for _, e := range r.EvidencesCreated.Items {
		if err := table.Append([]string{e.Month, e.Date, strconv.Itoa(e.Total), e.Path}); err != nil {
			return err
		}
	}
	for _, f := range r.EvidencesWithErrors.Items {
		if err := table.Append([]string{"", f.Date, "-", Red(truncate(f.Error, 80))}); err != nil {
			return err
		}
	}
	return table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
