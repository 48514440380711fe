package redmine

import (
	"strconv"

	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/tracker"
)

// ProjectTypeKey is stamped on every Redmine issue; Redmine has no project types.
const ProjectTypeKey = "redmine"

// Normalize maps a raw Redmine issue onto the canonical form. baseURL is used
// to build the issue link.
func Normalize(raw Issue, baseURL string) (models.UserIssue, error) {
	id := strconv.Itoa(raw.ID)
	switch {
	case raw.ID <= 0:
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceRedmine, ID: id, Field: "id"}
	case raw.Project == nil:
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceRedmine, ID: id, Field: "project"}
	case raw.Status == nil:
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceRedmine, ID: id, Field: "status"}
	case raw.UpdatedOn.IsZero():
		return models.UserIssue{}, &tracker.MalformedPayloadError{Source: models.SourceRedmine, ID: id, Field: "updated_on"}
	}

	issue := models.UserIssue{
		ID:             id,
		Key:            id,
		Created:        raw.CreatedOn,
		Updated:        raw.UpdatedOn,
		Closed:         raw.ClosedOn,
		Status:         raw.Status.Name,
		Description:    raw.Description,
		Summary:        raw.Subject,
		Project:        raw.Project.Name,
		ProjectTypeKey: ProjectTypeKey,
		Link:           tracker.JoinURL(baseURL, "/issues/"+id),
		Source:         models.SourceRedmine,
	}
	if raw.Tracker != nil {
		issue.Type = raw.Tracker.Name
	}
	if raw.AssignedTo != nil {
		issue.Assignee = raw.AssignedTo.Name
		assignedID := raw.AssignedTo.ID
		issue.AssignedToID = &assignedID
	}
	if raw.Author != nil {
		author := raw.Author.Name
		issue.Creator = &author
		issue.Reporter = &author
	}
	return issue, nil
}
