package store

import (
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/evidence/internal/models"
)

const issueColumns = `id, source, external_id, issue_key, type, status, assignee, assigned_to_id,
	summary, description, project, project_type_key, link, creator, reporter,
	issue_created, issue_updated, issue_closed, created_at, updated_at`

const templateColumns = `id, username, path, evidence_user_display_name, source, year, month, created_at, updated_at`

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.UserIssue, error) {
	i := &models.UserIssue{}
	var src string
	err := row.Scan(&i.RecordID, &src, &i.ID, &i.Key, &i.Type, &i.Status, &i.Assignee, &i.AssignedToID,
		&i.Summary, &i.Description, &i.Project, &i.ProjectTypeKey, &i.Link, &i.Creator, &i.Reporter,
		&i.Created, &i.Updated, &i.Closed, &i.RecordCreatedAt, &i.RecordUpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Source = models.Source(src)
	return i, nil
}

func scanTemplate(row rowScanner) (*models.UserTemplate, error) {
	t := &models.UserTemplate{}
	err := row.Scan(&t.ID, &t.Username, &t.Path, &t.EvidenceUserDisplayName, &t.Source, &t.Year, &t.Month, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// page appends LIMIT/OFFSET. noLimit is the dialect's spelling of "no limit"
// for when only an offset is given.
func page(query string, args []any, skip, limit int, noLimit string) (string, []any) {
	switch {
	case limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(skip, 0))
	case skip > 0:
		query += " LIMIT " + noLimit + " OFFSET ?"
		args = append(args, skip)
	}
	return query, args
}

func listIssuesQuery(f IssueFilter, noLimit string) (string, []any) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conditions []string
	var args []any

	if f.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.AssignedToID > 0 {
		conditions = append(conditions, "assigned_to_id = ?")
		args = append(args, f.AssignedToID)
	}
	if !f.UpdatedFrom.IsZero() {
		conditions = append(conditions, "issue_updated >= ?")
		args = append(args, f.UpdatedFrom.UTC())
	}
	if !f.UpdatedTo.IsZero() {
		conditions = append(conditions, "issue_updated <= ?")
		args = append(args, f.UpdatedTo.UTC())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY issue_updated DESC, external_id"
	return page(query, args, f.Skip, f.Limit, noLimit)
}

func listTemplatesQuery(f TemplateFilter, noLimit string) (string, []any) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	var conditions []string
	var args []any

	if f.Username != "" {
		conditions = append(conditions, "username = ?")
		args = append(args, f.Username)
	}
	if f.Year > 0 {
		conditions = append(conditions, "year = ?")
		args = append(args, f.Year)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at DESC, path"
	return page(query, args, f.Skip, f.Limit, noLimit)
}

// rebind rewrites ? placeholders into PostgreSQL's $n form.
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
