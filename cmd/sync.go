package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/evidence/internal/jobs"
	"github.com/joescharf/evidence/internal/output"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy every Redmine issue into the local store",
	Long: `Page through the Redmine issues API and upsert each issue into the store.
Issues are keyed by source and id, so repeated runs update in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncRun()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func syncRun() error {
	creds := configCredentials()
	ctx, cancel := commandContext(jobs.SyncTimeout)
	defer cancel()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.syncer.Run(ctx, creds.Authorization())
	if err != nil {
		return err
	}
	ui.Success("Synced %d Redmine issues (%d new, %d updated, %s failed) in %dms",
		res.CreatedRegisters, res.Inserted, res.Updated, output.CountColor(res.Failed), res.ElapsedMs)
	for _, e := range res.Errors {
		ui.VerboseLog("%s", e)
	}
	return nil
}
