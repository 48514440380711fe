package models

import "time"

// Source identifies the tracking system an issue was read from.
type Source string

const (
	SourceJira    Source = "JIRA"
	SourceRedmine Source = "REDMINE"
)

// Sources lists every tracker in capture and document order.
var Sources = []Source{SourceJira, SourceRedmine}

// UserIssue is the canonical form of a work item, whatever tracker it came from.
type UserIssue struct {
	ID             string     `json:"id"`
	Key            string     `json:"key"`
	Type           string     `json:"type"`
	Created        time.Time  `json:"created"`
	Updated        time.Time  `json:"updated"`
	Closed         *time.Time `json:"closed,omitempty"`
	Assignee       string     `json:"assignee"`
	AssignedToID   *int       `json:"assignedToId,omitempty"`
	Status         string     `json:"status"`
	Description    string     `json:"description"`
	Summary        string     `json:"summary"`
	Project        string     `json:"project"`
	ProjectTypeKey string     `json:"projectTypeKey"`
	Link           string     `json:"link"`
	Creator        *string    `json:"creator,omitempty"`
	Reporter       *string    `json:"reporter,omitempty"`
	Source         Source     `json:"source"`

	// Set only on issues read back from the store.
	RecordID        string    `json:"recordId,omitempty"`
	RecordCreatedAt time.Time `json:"recordCreatedAt,omitzero"`
	RecordUpdatedAt time.Time `json:"recordUpdatedAt,omitzero"`
}

// DataIssue is the per-month aggregate of issues across trackers.
// Jira issues always precede Redmine issues.
type DataIssue struct {
	Month           string      `json:"month"`
	Total           int         `json:"total"`
	UserDisplayName string      `json:"userDisplayName"`
	Project         string      `json:"project"`
	Issues          []UserIssue `json:"issues"`
}

// Add appends an issue and keeps Total in step with Issues.
func (d *DataIssue) Add(issue UserIssue) {
	d.Issues = append(d.Issues, issue)
	d.Total = len(d.Issues)
}

// BySource returns the issues of one tracker, preserving order.
func (d *DataIssue) BySource(src Source) []UserIssue {
	var out []UserIssue
	for _, issue := range d.Issues {
		if issue.Source == src {
			out = append(out, issue)
		}
	}
	return out
}
