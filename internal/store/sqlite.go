package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/evidence/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; the pool serializes access so concurrent HTTP
	// requests and the cron sync never see "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
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
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Issues ---

func (s *SQLiteStore) UpsertIssue(ctx context.Context, issue *models.UserIssue) (bool, error) {
	if issue.ID == "" || issue.Source == "" {
		return false, fmt.Errorf("upsert issue: source and id are required")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("upsert issue: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var recordID string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM issues WHERE source = ? AND external_id = ?`,
		string(issue.Source), issue.ID,
	).Scan(&recordID, &createdAt)

	created := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		recordID = newULID()
		createdAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO issues (`+issueColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			recordID, string(issue.Source), issue.ID, issue.Key, issue.Type, issue.Status, issue.Assignee, issue.AssignedToID,
			issue.Summary, issue.Description, issue.Project, issue.ProjectTypeKey, issue.Link, issue.Creator, issue.Reporter,
			issue.Created.UTC(), issue.Updated.UTC(), utcPtr(issue.Closed), createdAt, now,
		)
		if err != nil {
			return false, fmt.Errorf("insert issue: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("lookup issue: %w", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE issues SET issue_key=?, type=?, status=?, assignee=?, assigned_to_id=?, summary=?, description=?,
				project=?, project_type_key=?, link=?, creator=?, reporter=?, issue_created=?, issue_updated=?, issue_closed=?, updated_at=?
			WHERE id=?`,
			issue.Key, issue.Type, issue.Status, issue.Assignee, issue.AssignedToID, issue.Summary, issue.Description,
			issue.Project, issue.ProjectTypeKey, issue.Link, issue.Creator, issue.Reporter,
			issue.Created.UTC(), issue.Updated.UTC(), utcPtr(issue.Closed), now, recordID,
		)
		if err != nil {
			return false, fmt.Errorf("update issue: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("upsert issue: commit: %w", err)
	}
	issue.RecordID = recordID
	issue.RecordCreatedAt = createdAt
	issue.RecordUpdatedAt = now
	return created, nil
}

func (s *SQLiteStore) GetIssue(ctx context.Context, recordID string) (*models.UserIssue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, recordID)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) GetIssueByExternalID(ctx context.Context, src models.Source, id string) (*models.UserIssue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE source = ? AND external_id = ?`, string(src), id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s issue %s: %w", src, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue by external id: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueFilter) ([]*models.UserIssue, error) {
	query, args := listIssuesQuery(filter, "-1")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

func (s *SQLiteStore) UpsertTemplate(ctx context.Context, t *models.UserTemplate) (bool, error) {
	if t.Username == "" || t.Path == "" {
		return false, fmt.Errorf("upsert template: username and path are required")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("upsert template: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM templates WHERE username = ? AND path = ?`, t.Username, t.Path,
	).Scan(&id, &createdAt)

	created := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		id = newULID()
		createdAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, t.Username, t.Path, t.EvidenceUserDisplayName, t.Source, t.Year, t.Month, createdAt, now,
		)
		if err != nil {
			return false, fmt.Errorf("insert template: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("lookup template: %w", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE templates SET evidence_user_display_name=?, source=?, year=?, month=?, updated_at=? WHERE id=?`,
			t.EvidenceUserDisplayName, t.Source, t.Year, t.Month, now, id,
		)
		if err != nil {
			return false, fmt.Errorf("update template: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("upsert template: commit: %w", err)
	}
	t.ID = id
	t.CreatedAt = createdAt
	t.UpdatedAt = now
	return created, nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*models.UserTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]*models.UserTemplate, error) {
	query, args := listTemplatesQuery(filter, "-1")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
