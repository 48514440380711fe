// Package document writes evidence .docx files.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/joescharf/evidence/internal/capture"
	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/models"
)

// FSError wraps a filesystem failure while placing a document.
type FSError struct {
	Op   string
	Path string
	Err  error
}

func (e *FSError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }

func (e *FSError) Unwrap() error { return e.Err }

// Path returns {base}/EVIDENCIAS {year}/{name}/{MONTH}/Plantilla Evidencias - {month}.docx
// for a capitalized or lowercase Spanish month label.
func Path(base string, year int, displayName, monthLabel string) string {
	month := strings.ToLower(monthLabel)
	return filepath.Join(base,
		fmt.Sprintf("EVIDENCIAS %d", year),
		safeSegment(displayName),
		strings.ToUpper(month),
		"Plantilla Evidencias - "+month+".docx",
	)
}

func safeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "-", `\`, "-").Replace(s)
}

// Assembler lays out and writes evidence documents under BaseDir.
type Assembler struct {
	baseDir string
	log     *slog.Logger
}

func NewAssembler(baseDir string, log *slog.Logger) *Assembler {
	return &Assembler{baseDir: baseDir, log: logger.OrDefault(log)}
}

// Build writes the document for ev and returns a copy of ev with its issue
// list cleared and Path set. An existing file at the path is replaced.
func (a *Assembler) Build(ctx context.Context, ev *models.Evidence, shots *capture.Shots) (*models.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := a.render(&buf, ev, shots); err != nil {
		return nil, err
	}

	path := Path(a.baseDir, ev.Year, ev.UserDisplayName, ev.Month)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &FSError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &FSError{Op: "remove", Path: path, Err: err}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return nil, &FSError{Op: "write", Path: path, Err: err}
	}

	out := *ev
	out.Issues = nil
	out.Path = path
	a.log.Info("evidence document written", "path", path, "issues", ev.Total, "images", len(shots.BySource(models.SourceJira))+len(shots.BySource(models.SourceRedmine)))
	return &out, nil
}

func (a *Assembler) render(buf *bytes.Buffer, ev *models.Evidence, shots *capture.Shots) error {
	doc := docx.New().WithDefaultTheme().WithA4Page()

	title := doc.AddParagraph()
	title.Justification("center")
	title.AddText("EVIDENCIAS DE ACTIVIDADES").Bold().Size("32")

	// Metadata
	for _, kv := range [][2]string{
		{"Proyecto", ev.Project},
		{"Nombre", ev.UserDisplayName},
		{"Rol", ev.Role},
		{"Fecha", ev.Date},
	} {
		p := doc.AddParagraph()
		p.AddText(kv[0] + ": ").Bold()
		p.AddText(kv[1])
	}

	// Narrative
	doc.AddParagraph().AddText(ev.Intro)
	for _, issue := range ev.Issues {
		doc.AddParagraph().AddText(issue.Title).Bold()
		doc.AddParagraph().AddText(issue.Summary)
		if issue.Link != "" {
			doc.AddParagraph().AddLink(issue.Link, issue.Link)
		}
	}

	// Images, Jira first
	header := doc.AddParagraph()
	header.AddText("Capturas de pantalla").Bold().Size("28")
	for _, src := range models.Sources {
		for _, shot := range shots.BySource(src) {
			p := doc.AddParagraph()
			p.Justification("center")
			if _, err := p.AddInlineDrawing(shot.Image); err != nil {
				// An unreadable image drops only that image.
				a.log.Warn("skipping screenshot", "source", shot.Source, "key", shot.Key, "error", err)
				continue
			}
			doc.AddParagraph().AddText(shot.Key)
		}
	}

	if _, err := doc.WriteTo(buf); err != nil {
		return fmt.Errorf("render docx: %w", err)
	}
	return nil
}
