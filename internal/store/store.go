package store

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/evidence/internal/models"
)

// ErrNotFound is wrapped by lookups that match no record.
var ErrNotFound = errors.New("not found")

// IssueFilter specifies filters for listing persisted issues.
// Zero values mean "any"; a zero Limit means no limit.
type IssueFilter struct {
	Source       models.Source
	AssignedToID int
	UpdatedFrom  time.Time
	UpdatedTo    time.Time
	Skip         int
	Limit        int
}

// TemplateFilter specifies filters for listing template records.
type TemplateFilter struct {
	Username string
	Year     int
	Skip     int
	Limit    int
}

// Store defines the persistence interface for evidence.
type Store interface {
	// Issues are keyed by (Source, ID). UpsertIssue reports whether a new
	// record was inserted; updates keep RecordCreatedAt.
	UpsertIssue(ctx context.Context, issue *models.UserIssue) (bool, error)
	GetIssue(ctx context.Context, recordID string) (*models.UserIssue, error)
	GetIssueByExternalID(ctx context.Context, src models.Source, id string) (*models.UserIssue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]*models.UserIssue, error)

	// Templates are keyed by (Username, Path).
	UpsertTemplate(ctx context.Context, t *models.UserTemplate) (bool, error)
	GetTemplate(ctx context.Context, id string) (*models.UserTemplate, error)
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]*models.UserTemplate, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
