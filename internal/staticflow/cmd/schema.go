package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"staticflow/internal/config"
)

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Generate JSON schema for configuration",
	Long:   "Generate JSON schema for the STATICFLOW_* configuration",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		bts, err := json.MarshalIndent(config.Schema(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(bts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
