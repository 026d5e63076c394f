package cmd

import (
	"github.com/bacalhau-project/sshkit/pkg/config"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"github.com/bacalhau-project/sshkit/pkg/session"
	"github.com/bacalhau-project/sshkit/pkg/table"
	"github.com/spf13/cobra"
)

func getPutCmd() *cobra.Command {
	putCmd := &cobra.Command{
		Use:   "put <local-path> <remote-path>",
		Short: "Upload a file over SFTP",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			localPath, remotePath := args[0], args[1]
			return withSFTP(cmd.Context(), func(cfg *config.Config, channel *session.SFTP) error {
				if err := channel.Put(localPath, remotePath); err != nil {
					return err
				}
				logger.FromContext(cmd.Context()).Infof("Uploaded %s to %s:%s", localPath, cfg.SSH.Host, remotePath)

				summary := table.NewTransferTable(cmd.OutOrStdout())
				summary.AddTransfer("put", localPath, remotePath, channel.Stats())
				summary.Render()
				return nil
			})
		},
	}
	putCmd.Flags().Int("chunk-size", 0, "bytes per SFTP write request (max 32768)")
	bindFlags(putCmd.Flags(), map[string]string{"chunk-size": "sftp.chunk_size"})
	return putCmd
}
