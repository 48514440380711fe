package models

import "time"

// UserTemplate is the persisted metadata of a generated evidence document.
// Records are keyed by (Username, Path).
type UserTemplate struct {
	ID                      string    `json:"id"`
	Username                string    `json:"username"`
	Path                    string    `json:"path"`
	EvidenceUserDisplayName string    `json:"evidenceUserDisplayName"`
	Source                  string    `json:"source"`
	Year                    int       `json:"year"`
	Month                   int       `json:"month"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}
