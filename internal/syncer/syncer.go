// Package syncer copies Redmine issues into the local store.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/tracker/redmine"
)

// Fetcher pages through every Redmine issue.
type Fetcher interface {
	AllIssues(ctx context.Context, authorization string, q redmine.Query) ([]redmine.Issue, error)
	BaseURL() string
}

// Upserter persists one canonical issue.
type Upserter interface {
	UpsertIssue(ctx context.Context, issue *models.UserIssue) (bool, error)
}

// RecordError describes one issue that could not be normalized or stored.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string { return fmt.Sprintf("redmine issue %s: %v", e.ID, e.Err) }

func (e *RecordError) Unwrap() error { return e.Err }

// Result holds the outcome of one sync run.
type Result struct {
	Fetched          int      `json:"fetched"`
	CreatedRegisters int      `json:"createdRegisters"`
	Inserted         int      `json:"inserted"`
	Updated          int      `json:"updated"`
	Failed           int      `json:"failed"`
	Errors           []string `json:"errors,omitempty"`
	ElapsedMs        int64    `json:"elapsedMs"`
}

// Syncer runs the paged fetch then upserts every record.
type Syncer struct {
	fetcher Fetcher
	store   Upserter
	query   redmine.Query
	log     *slog.Logger
}

// New returns a Syncer. q carries the status filter and page size; its
// Offset is ignored.
func New(f Fetcher, s Upserter, q redmine.Query, log *slog.Logger) *Syncer {
	return &Syncer{fetcher: f, store: s, query: q, log: logger.OrDefault(log)}
}

// Run fetches every page and upserts each record. A page failure aborts the
// run; a record failure is counted and skipped.
func (s *Syncer) Run(ctx context.Context, authorization string) (*Result, error) {
	start := time.Now()
	q := s.query
	q.Offset = 0

	raws, err := s.fetcher.AllIssues(ctx, authorization, q)
	if err != nil {
		return nil, err
	}

	res := &Result{Fetched: len(raws)}
	base := s.fetcher.BaseURL()
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inserted, err := s.syncOne(ctx, raw, base)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err.Error())
			s.log.Warn("redmine record skipped", "error", err)
			continue
		}
		res.CreatedRegisters++
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	res.ElapsedMs = time.Since(start).Milliseconds()
	s.log.Info("redmine sync finished",
		"fetched", res.Fetched, "created_registers", res.CreatedRegisters,
		"failed", res.Failed, "elapsed_ms", res.ElapsedMs)
	return res, nil
}

func (s *Syncer) syncOne(ctx context.Context, raw redmine.Issue, base string) (bool, error) {
	id := strconv.Itoa(raw.ID)
	issue, err := redmine.Normalize(raw, base)
	if err != nil {
		return false, &RecordError{ID: id, Err: err}
	}
	inserted, err := s.store.UpsertIssue(ctx, &issue)
	if err != nil {
		return false, &RecordError{ID: id, Err: err}
	}
	return inserted, nil
}
