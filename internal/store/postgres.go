package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joescharf/evidence/internal/models"
)

//go:embed pgmigrations/*.sql
var pgMigrationsFS embed.FS

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := pgMigrationsFS.ReadDir("pgmigrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = $1", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := pgMigrationsFS.ReadFile("pgmigrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Issues ---

// xmax = 0 holds only for rows this statement inserted.
const pgUpsertIssue = `
	INSERT INTO issues (` + issueColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$19)
	ON CONFLICT (source, external_id) DO UPDATE SET
		issue_key=EXCLUDED.issue_key,
		type=EXCLUDED.type,
		status=EXCLUDED.status,
		assignee=EXCLUDED.assignee,
		assigned_to_id=EXCLUDED.assigned_to_id,
		summary=EXCLUDED.summary,
		description=EXCLUDED.description,
		project=EXCLUDED.project,
		project_type_key=EXCLUDED.project_type_key,
		link=EXCLUDED.link,
		creator=EXCLUDED.creator,
		reporter=EXCLUDED.reporter,
		issue_created=EXCLUDED.issue_created,
		issue_updated=EXCLUDED.issue_updated,
		issue_closed=EXCLUDED.issue_closed,
		updated_at=EXCLUDED.updated_at
	RETURNING id, created_at, (xmax = 0) AS inserted`

func (s *PostgresStore) UpsertIssue(ctx context.Context, issue *models.UserIssue) (bool, error) {
	if issue.ID == "" || issue.Source == "" {
		return false, fmt.Errorf("upsert issue: source and id are required")
	}
	now := time.Now().UTC()

	var inserted bool
	err := s.pool.QueryRow(ctx, pgUpsertIssue,
		newULID(), string(issue.Source), issue.ID, issue.Key, issue.Type, issue.Status, issue.Assignee, issue.AssignedToID,
		issue.Summary, issue.Description, issue.Project, issue.ProjectTypeKey, issue.Link, issue.Creator, issue.Reporter,
		issue.Created.UTC(), issue.Updated.UTC(), utcPtr(issue.Closed), now,
	).Scan(&issue.RecordID, &issue.RecordCreatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert issue: %w", err)
	}
	issue.RecordUpdatedAt = now
	return inserted, nil
}

func (s *PostgresStore) GetIssue(ctx context.Context, recordID string) (*models.UserIssue, error) {
	issue, err := scanIssue(s.pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, recordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *PostgresStore) GetIssueByExternalID(ctx context.Context, src models.Source, id string) (*models.UserIssue, error) {
	issue, err := scanIssue(s.pool.QueryRow(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE source = $1 AND external_id = $2`, string(src), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s issue %s: %w", src, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue by external id: %w", err)
	}
	return issue, nil
}

func (s *PostgresStore) ListIssues(ctx context.Context, filter IssueFilter) ([]*models.UserIssue, error) {
	query, args := listIssuesQuery(filter, "ALL")
	rows, err := s.pool.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.UserIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// --- Templates ---

const pgUpsertTemplate = `
	INSERT INTO templates (` + templateColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	ON CONFLICT (username, path) DO UPDATE SET
		evidence_user_display_name=EXCLUDED.evidence_user_display_name,
		source=EXCLUDED.source,
		year=EXCLUDED.year,
		month=EXCLUDED.month,
		updated_at=EXCLUDED.updated_at
	RETURNING id, created_at, (xmax = 0) AS inserted`

func (s *PostgresStore) UpsertTemplate(ctx context.Context, t *models.UserTemplate) (bool, error) {
	if t.Username == "" || t.Path == "" {
		return false, fmt.Errorf("upsert template: username and path are required")
	}
	now := time.Now().UTC()

	var inserted bool
	err := s.pool.QueryRow(ctx, pgUpsertTemplate,
		newULID(), t.Username, t.Path, t.EvidenceUserDisplayName, t.Source, t.Year, t.Month, now,
	).Scan(&t.ID, &t.CreatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert template: %w", err)
	}
	t.UpdatedAt = now
	return inserted, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*models.UserTemplate, error) {
	t, err := scanTemplate(s.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]*models.UserTemplate, error) {
	query, args := listTemplatesQuery(filter, "ALL")
	rows, err := s.pool.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.UserTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
