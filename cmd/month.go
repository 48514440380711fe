package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/evidence/internal/aggregate"
	"github.com/joescharf/evidence/internal/tracker"
)

// monthFlags are the source selection flags shared by issues, create and year.
type monthFlags struct {
	month           int
	year            int
	jiraUser        string
	jql             string
	redmineAssignee int
	fromStore       bool
}

func (f *monthFlags) register(cmd *cobra.Command, monthUsage string) {
	now := time.Now()
	cmd.Flags().IntVarP(&f.month, "month", "m", int(now.Month()), monthUsage)
	cmd.Flags().IntVarP(&f.year, "year", "y", now.Year(), "Year")
	cmd.Flags().StringVar(&f.jiraUser, "jira-user", "", "Jira assignee (enables Jira)")
	cmd.Flags().StringVar(&f.jql, "jql", "", "Explicit JQL, replacing the configured template")
	cmd.Flags().IntVar(&f.redmineAssignee, "redmine-assignee", 0, "Redmine assigned_to_id (enables Redmine)")
	cmd.Flags().BoolVar(&f.fromStore, "from-store", false, "Read Redmine issues from the local store")
}

// request builds the aggregation request. With no source flag, Jira is
// queried for the configured user.
func (f *monthFlags) request(creds tracker.Credentials) (aggregate.Request, error) {
	if creds.Empty() {
		return aggregate.Request{}, fmt.Errorf("auth.username is not configured (set EVIDENCE_AUTH_USERNAME or run 'evidence config init')")
	}
	req := aggregate.Request{Month: f.month, Year: f.year, Credentials: creds}

	if f.jiraUser != "" || f.jql != "" {
		req.Jira = &aggregate.JiraParams{Username: f.jiraUser, JQL: f.jql}
	}
	if f.redmineAssignee > 0 {
		req.Redmine = &aggregate.RedmineParams{AssignedToID: f.redmineAssignee, FromStore: f.fromStore}
	} else if f.fromStore {
		return aggregate.Request{}, fmt.Errorf("--from-store requires --redmine-assignee")
	}
	if req.Jira == nil && req.Redmine == nil {
		req.Jira = &aggregate.JiraParams{}
	}
	if req.Jira != nil && req.Jira.Username == "" {
		req.Jira.Username = creds.Username
	}
	return req, nil
}
