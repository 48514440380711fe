// Package jobs schedules the periodic Redmine sync.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/syncer"
)

// SyncTimeout bounds one scheduled run.
const SyncTimeout = 10 * time.Minute

type syncRunner interface {
	Run(ctx context.Context, authorization string) (*syncer.Result, error)
}

// Cron runs the Redmine sync on a five-field cron schedule.
type Cron struct {
	c             *cron.Cron
	sync          syncRunner
	authorization string
	log           *slog.Logger
}

// NewCron schedules s with spec. Overlapping runs are skipped.
func NewCron(spec string, s syncRunner, authorization string, log *slog.Logger) (*Cron, error) {
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	cr := &Cron{c: c, sync: s, authorization: authorization, log: logger.OrDefault(log)}
	if _, err := c.AddFunc(spec, cr.run); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop stops scheduling and returns a context done when a running sync ends.
func (cr *Cron) Stop() context.Context { return cr.c.Stop() }

// Next reports the next scheduled run.
func (cr *Cron) Next() time.Time {
	entries := cr.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (cr *Cron) run() {
	ctx, cancel := context.WithTimeout(context.Background(), SyncTimeout)
	defer cancel()

	cr.log.Info("cron: redmine sync")
	res, err := cr.sync.Run(ctx, cr.authorization)
	if err != nil {
		cr.log.Error("cron: redmine sync failed", "error", err)
		return
	}
	cr.log.Info("cron: redmine sync done", "created_registers", res.CreatedRegisters, "failed", res.Failed)
}
