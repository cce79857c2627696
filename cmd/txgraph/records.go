package main

import (
	"bufio"

	"github.com/rpattn/txgraph/internal/export"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newRecordsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "records <file>",
		Short: "Print a generated chunk file as JSON records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root.applyLogLevel(cmd, root.logLevel)

			table, err := export.ReadRecords(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			out := bufio.NewWriter(cmd.OutOrStdout())
			if err := export.EncodeRecords(out, table); err != nil {
				return err
			}
			if _, err := out.WriteString("\n"); err != nil {
				return err
			}
			return out.Flush()
		},
	}
}
