package cmd

import (
	"fmt"
	"os"

	"github.com/bacalhau-project/sshkit/pkg/config"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// NewRootCmd builds the sshkit command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sshkit",
		Short: "sshkit copies files and runs commands over SSH",
		Long: `sshkit connects to an SSH server and transfers files over SFTP in
bounded chunks, or runs a single remote command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sshkit.yaml)")
	flags.Bool("verbose", false, "Enable verbose output")
	flags.String("host", "", "SSH server host")
	flags.Int("port", 0, "SSH server port (default 22)")
	flags.StringP("user", "u", "", "login name (default is the local user)")
	flags.String("password", "", "password for password authentication")
	flags.StringP("identity-file", "i", "", "private key file for public key authentication")
	flags.String("known-hosts", "", "known_hosts file used when host key checking is on")
	flags.Bool("strict-host-key-checking", false, "verify the server host key against known_hosts")
	flags.Duration("timeout", 0, "connect timeout (default 10s)")
	flags.Int("retries", 0, "connect retries with exponential backoff")
	flags.String("log-level", "", "engine log level: NOTSET, TRACE, DEBUG, INFO, WARNING, ERROR")

	bindFlags(flags, map[string]string{
		"verbose":                  "general.verbose",
		"host":                     "ssh.host",
		"port":                     "ssh.port",
		"user":                     "ssh.user",
		"password":                 "ssh.password",
		"identity-file":            "ssh.private_key_path",
		"known-hosts":              "ssh.known_hosts_file",
		"strict-host-key-checking": "ssh.host_key_checking",
		"timeout":                  "ssh.timeout",
		"retries":                  "ssh.connect_retries",
		"log-level":                "ssh.log_level",
	})

	rootCmd.AddCommand(getPutCmd())
	rootCmd.AddCommand(getGetCmd())
	rootCmd.AddCommand(getExecCmd())
	rootCmd.AddCommand(getLevelsCmd())
	rootCmd.AddCommand(getConfigCmd())

	return rootCmd
}

// bindFlags binds each flag to its viper key.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(flag)))
	}
}

// Execute runs the root command with file and console logging configured.
// This is called by main.main().
func Execute() error {
	rootCmd := NewRootCmd()
	preRun := rootCmd.PersistentPreRunE
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := preRun(cmd, args); err != nil {
			return err
		}
		initLogging()
		cmd.SetContext(logger.IntoContext(cmd.Context(), logger.Get()))
		return nil
	}
	return rootCmd.Execute()
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType(config.DefaultConfigType)
	v.SetConfigName(config.DefaultConfigName)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func initLogging() {
	logger.InitLoggerOutputs()
	if viper.GetBool("general.verbose") {
		logger.GlobalEnableConsoleLogger = true
		logger.GlobalLogLevel = "debug"
	}
	logger.InitProduction()

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Get().Debugf("Using config file: %s", used)
	}
}
