package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var (
	issuesFlags monthFlags
	issuesJSON  bool
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List a month of Jira and Redmine issues",
	Long: `Fetch, normalize and merge the issues of one month without capturing
screenshots or writing a document. Jira issues are listed first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issuesRun()
	},
}

func init() {
	issuesFlags.register(issuesCmd, "Month (1-12)")
	issuesCmd.Flags().BoolVar(&issuesJSON, "json", false, "Print the aggregate as JSON")
	rootCmd.AddCommand(issuesCmd)
}

func issuesRun() error {
	req, err := issuesFlags.request(configCredentials())
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(0)
	defer cancel()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	data, err := svc.issues.Aggregate(ctx, req)
	if err != nil {
		return err
	}

	if issuesJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	ui.Info("%s %d: %d issues for %s (%s)", data.Month, req.Year, data.Total, data.UserDisplayName, data.Project)
	if data.Total == 0 {
		return nil
	}
	return ui.IssuesTable(data.Issues)
}
