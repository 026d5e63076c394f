package main

import (
	"fmt"
	"os"

	"github.com/bacalhau-project/sshkit/cmd"
	"github.com/bacalhau-project/sshkit/pkg/logger"
)

func main() {
	logger.RecoverAndLog(func() {
		if err := cmd.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	})
}
