package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration inspection",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			data, err := json.MarshalIndent(cfg.MaskedCopy(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# %s\n%s\n\n# secrets (environment only)\n", resolveConfigPath(), data)
			for _, s := range cfg.Secrets() {
				v := s[1]
				if v == "" {
					v = "(not set)"
				}
				fmt.Fprintf(out, "%-30s %s\n", s[0], v)
			}
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config for the selected drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	}
}
