package models

// IssueDescription is the narrative entry for one issue in an evidence document.
type IssueDescription struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Link    string `json:"link"`
	Source  Source `json:"source"`
	Closed  bool   `json:"closed"`
	Project string `json:"project"`
}

// Evidence is the narrative for one user in one month.
type Evidence struct {
	Project         string             `json:"project"`
	UserDisplayName string             `json:"userDisplayName"`
	Role            string             `json:"role,omitempty"`
	Date            string             `json:"date"`
	Month           string             `json:"month"`
	Year            int                `json:"year"`
	Intro           string             `json:"intro"`
	Total           int                `json:"total"`
	Issues          []IssueDescription `json:"issues,omitempty"`
	Path            string             `json:"path,omitempty"`
}

// EvidenceSummary describes a document created during a year batch.
type EvidenceSummary struct {
	Project string `json:"project"`
	Date    string `json:"date"`
	Month   string `json:"month"`
	Total   int    `json:"total"`
	Path    string `json:"path"`
}

// EvidenceFailure records a month that could not be produced.
type EvidenceFailure struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

// CreatedEvidences collects the successful months of a year batch.
type CreatedEvidences struct {
	Total int               `json:"total"`
	Items []EvidenceSummary `json:"items"`
}

// FailedEvidences collects the failed months of a year batch.
type FailedEvidences struct {
	Total int               `json:"total"`
	Items []EvidenceFailure `json:"items"`
}

// YearReport is the outcome of generating documents for a range of months.
type YearReport struct {
	UserDisplayName     string           `json:"userDisplayName"`
	EvidencesCreated    CreatedEvidences `json:"evidencesCreated"`
	EvidencesWithErrors FailedEvidences  `json:"evidencesWithErrors"`
	ElapsedMs           int64            `json:"elapsedMs"`
}
