package jira

import (
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/tracker"
)

// Normalize maps a raw Jira issue onto the canonical form. baseURL is the
// instance the issue was read from and is used to build its browse link.
func Normalize(raw Issue, baseURL string) (models.UserIssue, error) {
	f := raw.Fields
	switch {
	case raw.Key == "":
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceJira, ID: raw.ID, Field: "key"}
	case f == nil:
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceJira, ID: raw.Key, Field: "fields"}
	case f.IssueType == nil:
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceJira, ID: raw.Key, Field: "fields.issuetype"}
	case f.Status == nil:
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceJira, ID: raw.Key, Field: "fields.status"}
	case f.Project == nil:
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceJira, ID: raw.Key, Field: "fields.project"}
	}

	issue := models.UserIssue{
		ID:             raw.ID,
		Key:            raw.Key,
		Type:           f.IssueType.Name,
		Created:        f.Created.Time,
		Updated:        f.Updated.Time,
		Status:         f.Status.Name,
		Description:    descriptionText(f.Description),
		Summary:        f.Summary,
		Project:        f.Project.Name,
		ProjectTypeKey: f.Project.ProjectTypeKey,
		Link:           tracker.JoinURL(baseURL, "/browse/"+raw.Key),
		Source:         models.SourceJira,
	}
	if f.Assignee != nil {
		issue.Assignee = f.Assignee.DisplayName
	}
	if f.ResolutionDate != nil && !f.ResolutionDate.IsZero() {
		closed := f.ResolutionDate.Time
		issue.Closed = &closed
	}
	if f.Creator != nil {
		issue.Creator = &f.Creator.DisplayName
	}
	if f.Reporter != nil {
		issue.Reporter = &f.Reporter.DisplayName
	}
	return issue, nil
}
