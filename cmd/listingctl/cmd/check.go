package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration for a role",
	Example: `  listingctl check --role loader
  listingctl check --config prod.yaml --role exporter`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := validateRole(cfg, role); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK for %s.\n", role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("role", "r", roleLoader, "Function to check: loader or exporter")
}
