package cmd

import (
	"github.com/bacalhau-project/sshkit/pkg/config"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"github.com/bacalhau-project/sshkit/pkg/session"
	"github.com/bacalhau-project/sshkit/pkg/table"
	"github.com/spf13/cobra"
)

func getGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path> <local-path>",
		Short: "Download a file over SFTP",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			remotePath, localPath := args[0], args[1]
			return withSFTP(cmd.Context(), func(cfg *config.Config, channel *session.SFTP) error {
				if err := channel.Get(remotePath, localPath); err != nil {
					return err
				}
				logger.FromContext(cmd.Context()).Infof("Downloaded %s:%s to %s", cfg.SSH.Host, remotePath, localPath)

				summary := table.NewTransferTable(cmd.OutOrStdout())
				summary.AddTransfer("get", remotePath, localPath, channel.Stats())
				summary.Render()
				return nil
			})
		},
	}
}
