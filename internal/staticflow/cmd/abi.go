package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"staticflow/internal/model"
)

var abiCmd = &cobra.Command{
	Use:   "abi [NAME...]",
	Short: "Print calling-convention descriptors",
	Example: `
staticflow abi
staticflow abi --yaml X64_SYSV
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := args
		if len(names) == 0 {
			names = model.ABINames()
		}
		table := make(map[string]model.ABI, len(names))
		for _, n := range names {
			abi, err := model.LookupABI(strings.ToUpper(n))
			if err != nil {
				return err
			}
			table[strings.ToUpper(n)] = abi
		}

		out := cmd.OutOrStdout()
		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			data, err := yaml.Marshal(table)
			if err != nil {
				return fmt.Errorf("failed to marshal abi table: %w", err)
			}
			_, err = out.Write(data)
			return err
		}
		for _, n := range names {
			abi := table[strings.ToUpper(n)]
			ret := abi.Return
			if ret == "" {
				ret = "-"
			}
			fmt.Fprintf(out, "%-14s ret=%-4s args=%s\n", strings.ToUpper(n), ret, strings.Join(abi.Args, ","))
		}
		return nil
	},
}

func init() {
	abiCmd.Flags().Bool("yaml", false, "Print the table as YAML")
	rootCmd.AddCommand(abiCmd)
}
