package cmd

import (
	"github.com/bacalhau-project/sshkit/pkg/logbridge"
	"github.com/bacalhau-project/sshkit/pkg/table"
	"github.com/spf13/cobra"
)

func getLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Show how log levels map to engine verbosity",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			lt := table.NewLevelTable(cmd.OutOrStdout())
			for _, level := range logbridge.Levels {
				lt.AddLevel(level)
			}
			lt.Render()
		},
	}
}
