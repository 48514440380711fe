package aggregate

import (
	"fmt"

	"github.com/joescharf/evidence/internal/models"
)

// FallbackMode selects how the Redmine branch fills the aggregate's display
// name and project when the Jira branch did not.
type FallbackMode string

const (
	// FallbackLegacy guards both assignments on the display name, applied in
	// order. Once the display name is filled the project is skipped, so a
	// Redmine-only aggregate keeps an empty project unless the assignee name
	// itself was empty.
	FallbackLegacy FallbackMode = "legacy"
	// FallbackStrict guards each field on itself.
	FallbackStrict FallbackMode = "strict"
)

// ParseFallbackMode accepts "", "legacy" or "strict".
func ParseFallbackMode(s string) (FallbackMode, error) {
	switch FallbackMode(s) {
	case "", FallbackLegacy:
		return FallbackLegacy, nil
	case FallbackStrict:
		return FallbackStrict, nil
	}
	return "", fmt.Errorf("unknown fallback mode %q (want legacy or strict)", s)
}

type field int

const (
	fieldDisplayName field = iota
	fieldProject
)

// fallbackStep assigns target when guard is still unset.
type fallbackStep struct {
	target field
	guard  field
}

var fallbackRules = map[FallbackMode][]fallbackStep{
	FallbackLegacy: {
		{target: fieldDisplayName, guard: fieldDisplayName},
		{target: fieldProject, guard: fieldDisplayName},
	},
	FallbackStrict: {
		{target: fieldDisplayName, guard: fieldDisplayName},
		{target: fieldProject, guard: fieldProject},
	},
}

func get(d *models.DataIssue, f field) string {
	if f == fieldProject {
		return d.Project
	}
	return d.UserDisplayName
}

func set(d *models.DataIssue, f field, v string) {
	if f == fieldProject {
		d.Project = v
		return
	}
	d.UserDisplayName = v
}

// applyFallback runs the mode's steps in order against d using the values
// of one included issue.
func applyFallback(mode FallbackMode, d *models.DataIssue, issue models.UserIssue) {
	steps, ok := fallbackRules[mode]
	if !ok {
		steps = fallbackRules[FallbackLegacy]
	}
	values := map[field]string{
		fieldDisplayName: issue.Assignee,
		fieldProject:     issue.Project,
	}
	for _, s := range steps {
		if get(d, s.guard) == "" {
			set(d, s.target, values[s.target])
		}
	}
}
