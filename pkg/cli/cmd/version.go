package cmd

import (
	"fmt"

	"github.com/rzbill/dashgate/pkg/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the dashgate version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			b := version.Current()
			if output == outputTable {
				fmt.Fprintln(cmd.OutOrStdout(), b.String())
				return nil
			}
			return writeStructured(cmd.OutOrStdout(), output, b)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format (table, json, yaml)")
	return cmd
}
