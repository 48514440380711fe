package redmine

import "time"

// IssuesResponse is one page of GET /issues.json.
type IssuesResponse struct {
	Issues     []Issue `json:"issues"`
	TotalCount int     `json:"total_count"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}

// Issue is a raw Redmine issue.
type Issue struct {
	ID          int        `json:"id"`
	Project     *Ref       `json:"project"`
	Tracker     *Ref       `json:"tracker"`
	Status      *Ref       `json:"status"`
	Priority    *Ref       `json:"priority"`
	Author      *Ref       `json:"author"`
	AssignedTo  *Ref       `json:"assigned_to"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	CreatedOn   time.Time  `json:"created_on"`
	UpdatedOn   time.Time  `json:"updated_on"`
	ClosedOn    *time.Time `json:"closed_on"`
}

// Ref is the {id, name} shape Redmine uses for every association.
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
