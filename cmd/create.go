package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/evidence/internal/evidence"
)

var createFlags monthFlags

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate the evidence document for one month",
	Long: `Aggregate the month's issues, capture a screenshot of each one and write
the .docx document under evidence.output_dir.

With --dry-run the narrative is printed and no browser is started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRun()
	},
}

func init() {
	createFlags.register(createCmd, "Month (1-12)")
	rootCmd.AddCommand(createCmd)
}

func createRun() error {
	req, err := createFlags.request(configCredentials())
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

	if dryRun {
		data, err := svc.issues.Aggregate(ctx, req)
		if err != nil {
			return err
		}
		ev, err := evidence.Compose(data, req.Month, req.Year, evidence.Options{Role: viper.GetString("evidence.role")})
		if err != nil {
			return err
		}
		ui.DryRunMsg("Would capture %d screenshots and write the %s %d document", ev.Total, ev.Month, ev.Year)
		fmt.Fprintf(ui.Out, "\n%s\n\n", ev.Intro)
		for _, d := range ev.Issues {
			fmt.Fprintf(ui.Out, "  %s\n    %s\n    %s\n", d.Title, d.Summary, d.Link)
		}
		return nil
	}

	ui.VerboseLog("Creating %02d/%d for %s", req.Month, req.Year, req.Credentials.Username)
	ev, err := svc.pipeline.CreateMonth(ctx, req)
	if err != nil {
		return err
	}
	ui.Success("%s %d: %d issues → %s", ev.Month, ev.Year, ev.Total, ev.Path)
	return nil
}
