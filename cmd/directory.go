package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hrdesk/internal/identity"
)

func directoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Employee directory management",
	}
	cmd.AddCommand(directorySyncCmd())
	return cmd
}

func directorySyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <file>",
		Short: "Load a YAML roster into the database directory",
		Long:  "Upserts every employee in the file and deactivates employees missing from it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			roster, err := identity.LoadFile(args[0])
			if err != nil {
				return err
			}
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			upserted, deactivated, err := stores.Employees.SyncEmployees(cmd.Context(), roster.All())
			if err != nil {
				return fmt.Errorf("sync employees: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d employees, deactivated %d\n", upserted, deactivated)
			return nil
		},
	}
}
