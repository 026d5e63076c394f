package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func getExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec -- <command> [args...]",
		Short: "Run a command on the remote host",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := s.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()

			res, err := s.Exec(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
			fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)

			if !res.Success() {
				return fmt.Errorf("command %q exited with status %d", res.Command, res.ExitStatus)
			}
			return nil
		},
	}
}
