package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/joescharf/evidence/internal/output"
)

var (
	yearFlags monthFlags
	yearJSON  bool
)

var yearCmd = &cobra.Command{
	Use:   "year",
	Short: "Generate evidence documents from January to a month",
	Long: `Run 'create' for every month from January through --month, in order.
A failed month is reported and the run continues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return yearRun()
	},
}

func init() {
	yearFlags.register(yearCmd, "Last month to generate (1-12)")
	yearCmd.Flags().BoolVar(&yearJSON, "json", false, "Print the year report as JSON")
	rootCmd.AddCommand(yearCmd)
}

func yearRun() error {
	req, err := yearFlags.request(configCredentials())
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

	report, err := svc.pipeline.CreateYear(ctx, req)
	if err != nil {
		return err
	}

	if yearJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if err := ui.YearReportTable(report); err != nil {
		return err
	}
	ui.Info("%s: %d created, %s failed in %dms",
		report.UserDisplayName,
		report.EvidencesCreated.Total,
		output.CountColor(report.EvidencesWithErrors.Total),
		report.ElapsedMs)
	return nil
}
