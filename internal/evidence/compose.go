// Package evidence turns a month's aggregate into the Spanish narrative of
// an evidence document.
package evidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/period"
)

const (
	introTemplate = "Durante el mes de %s de %d, %s desarrolló las siguientes actividades:"

	jiraTemplate    = `En el proyecto %s se atendió "%s": %s. Registrada el %s a las %s, alcanzó su estado actual a la fecha de su última actualización, el %s a las %s.`
	redmineTemplate = `En el proyecto %s se atendió "%s": %s. Registrada el %s a las %s, su estado cambió el %s a las %s.`
)

// FormatDate renders t's own calendar fields as DD/MM/YYYY.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d/%02d/%04d", t.Day(), int(t.Month()), t.Year())
}

// FormatClock renders t's own clock fields as 24-hour HH:MM.
func FormatClock(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Intro is the opening sentence of the narrative.
func Intro(month, year int, displayName string) string {
	return fmt.Sprintf(introTemplate, period.MonthName(month), year, displayName)
}

// Describe renders the paragraph for one issue using its source's phrasing.
func Describe(issue models.UserIssue) models.IssueDescription {
	tmpl := jiraTemplate
	if issue.Source == models.SourceRedmine {
		tmpl = redmineTemplate
	}
	description := strings.TrimRight(strings.TrimSpace(issue.Description), ".")
	summary := fmt.Sprintf(tmpl,
		issue.Project, issue.Summary, description,
		FormatDate(issue.Created), FormatClock(issue.Created),
		FormatDate(issue.Updated), FormatClock(issue.Updated),
	)

	title := issue.Key
	if issue.Summary != "" {
		title = issue.Key + " - " + issue.Summary
	}
	return models.IssueDescription{
		Title:   title,
		Summary: summary,
		Link:    issue.Link,
		Source:  issue.Source,
		Closed:  issue.Closed != nil,
		Project: issue.Project,
	}
}

// Options carries the per-document fields not derived from issues.
type Options struct {
	Role string
}

// Compose builds the Evidence for one user and month. Date is the last day
// of the month.
func Compose(data *models.DataIssue, month, year int, opts Options) (*models.Evidence, error) {
	w, err := period.MonthOf(year, month)
	if err != nil {
		return nil, err
	}
	ev := &models.Evidence{
		Project:         data.Project,
		UserDisplayName: data.UserDisplayName,
		Role:            opts.Role,
		Date:            FormatDate(w.End),
		Month:           period.Label(month),
		Year:            year,
		Intro:           Intro(month, year, data.UserDisplayName),
		Total:           data.Total,
		Issues:          make([]models.IssueDescription, 0, len(data.Issues)),
	}
	for _, issue := range data.Issues {
		ev.Issues = append(ev.Issues, Describe(issue))
	}
	return ev, nil
}
