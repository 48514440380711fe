// Package pipeline produces evidence documents for one month or a run of
// months.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joescharf/evidence/internal/aggregate"
	"github.com/joescharf/evidence/internal/artifact"
	"github.com/joescharf/evidence/internal/capture"
	"github.com/joescharf/evidence/internal/evidence"
	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/period"
	"github.com/joescharf/evidence/internal/tracker"
)

// Aggregator fetches and merges a month of issues.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregate.Request) (*models.DataIssue, error)
}

// Screenshotter captures one image per issue.
type Screenshotter interface {
	Capture(ctx context.Context, issues []models.UserIssue, creds tracker.Credentials) (*capture.Shots, error)
}

// Builder writes the document.
type Builder interface {
	Build(ctx context.Context, ev *models.Evidence, shots *capture.Shots) (*models.Evidence, error)
}

// TemplateRecorder persists document metadata.
type TemplateRecorder interface {
	UpsertTemplate(ctx context.Context, t *models.UserTemplate) (bool, error)
}

// Config holds the document-level settings.
type Config struct {
	Role    string
	BaseDir string
}

// Pipeline wires the month steps together. Templates and Publisher are
// optional.
type Pipeline struct {
	Aggregator Aggregator
	Capturer   Screenshotter
	Builder    Builder
	Templates  TemplateRecorder
	Publisher  artifact.Publisher
	Config     Config
	Log        *slog.Logger
}

func (p *Pipeline) log() *slog.Logger { return logger.OrDefault(p.Log) }

// CreateMonth aggregates, composes, captures and writes one document.
func (p *Pipeline) CreateMonth(ctx context.Context, req aggregate.Request) (*models.Evidence, error) {
	data, err := p.Aggregator.Aggregate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("aggregate issues: %w", err)
	}

	ev, err := evidence.Compose(data, req.Month, req.Year, evidence.Options{Role: p.Config.Role})
	if err != nil {
		return nil, fmt.Errorf("compose evidence: %w", err)
	}

	shots := &capture.Shots{}
	if len(data.Issues) > 0 {
		if shots, err = p.Capturer.Capture(ctx, data.Issues, req.Credentials); err != nil {
			return nil, fmt.Errorf("capture screenshots: %w", err)
		}
	}

	out, err := p.Builder.Build(ctx, ev, shots)
	if err != nil {
		return nil, fmt.Errorf("build document: %w", err)
	}

	if p.Templates != nil {
		_, err := p.Templates.UpsertTemplate(ctx, &models.UserTemplate{
			Username:                req.Credentials.Username,
			Path:                    out.Path,
			EvidenceUserDisplayName: out.UserDisplayName,
			Source:                  sourceLabel(data, req),
			Year:                    req.Year,
			Month:                   req.Month,
		})
		if err != nil {
			return nil, fmt.Errorf("record template: %w", err)
		}
	}

	if p.Publisher != nil {
		key := artifact.Key(p.Config.BaseDir, out.Path)
		if _, err := p.Publisher.Publish(ctx, out.Path, key); err != nil {
			p.log().Warn("mirror document failed", "path", out.Path, "error", err)
		}
	}
	return out, nil
}

// CreateYear runs CreateMonth for months 1..req.Month in order. A failed
// month is recorded and the loop moves on.
func (p *Pipeline) CreateYear(ctx context.Context, req aggregate.Request) (*models.YearReport, error) {
	if req.Month < 1 || req.Month > 12 {
		return nil, fmt.Errorf("%w: %d", period.ErrInvalidMonth, req.Month)
	}
	start := time.Now()
	report := &models.YearReport{
		EvidencesCreated:    models.CreatedEvidences{Items: []models.EvidenceSummary{}},
		EvidencesWithErrors: models.FailedEvidences{Items: []models.EvidenceFailure{}},
	}

	last := req.Month
	for m := 1; m <= last; m++ {
		monthReq := req
		monthReq.Month = m

		ev, err := p.CreateMonth(ctx, monthReq)
		if err != nil {
			p.log().Warn("month failed", "month", m, "year", req.Year, "error", err)
			report.EvidencesWithErrors.Items = append(report.EvidencesWithErrors.Items, models.EvidenceFailure{
				Date:  fmt.Sprintf("%02d/%d", m, req.Year),
				Error: err.Error(),
			})
			report.EvidencesWithErrors.Total++
			continue
		}

		if report.EvidencesCreated.Total == 0 {
			report.UserDisplayName = ev.UserDisplayName
		}
		report.EvidencesCreated.Items = append(report.EvidencesCreated.Items, models.EvidenceSummary{
			Project: ev.Project,
			Date:    ev.Date,
			Month:   ev.Month,
			Total:   ev.Total,
			Path:    ev.Path,
		})
		report.EvidencesCreated.Total++
	}

	report.ElapsedMs = time.Since(start).Milliseconds()
	p.log().Info("year batch finished",
		"year", req.Year, "months", last,
		"created", report.EvidencesCreated.Total, "failed", report.EvidencesWithErrors.Total,
		"elapsed_ms", report.ElapsedMs)
	return report, nil
}

// sourceLabel lists the trackers that contributed issues, or the requested
// ones when the month was empty.
func sourceLabel(data *models.DataIssue, req aggregate.Request) string {
	var sources []string
	for _, src := range models.Sources {
		if len(data.BySource(src)) > 0 {
			sources = append(sources, string(src))
		}
	}
	if len(sources) == 0 {
		if req.Jira != nil {
			sources = append(sources, string(models.SourceJira))
		}
		if req.Redmine != nil {
			sources = append(sources, string(models.SourceRedmine))
		}
	}
	return strings.Join(sources, ",")
}
