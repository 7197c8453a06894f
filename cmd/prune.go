package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hrdesk/internal/retention"
)

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete old processed-message records and idle sessions once",
		Long:  "Applies retention.processed_max_age and retention.session_idle_max_age immediately, whether or not the scheduled job is enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			job, err := retention.New(stores.Pruner, cfg.Retention)
			if err != nil {
				return err
			}
			res, err := job.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d processed records, %d sessions\n", res.Processed, res.Sessions)
			return nil
		},
	}
}
