// Package config loads sshkit settings from viper: a YAML file, SSHKIT_*
// environment variables and bound command line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bacalhau-project/sshkit/pkg/engine"
	"github.com/bacalhau-project/sshkit/pkg/logbridge"
	"github.com/bacalhau-project/sshkit/pkg/session"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "SSHKIT"
	DefaultConfigName = ".sshkit"
	DefaultConfigType = "yaml"
)

var requiredFields = []string{
	"ssh.host",
}

type Config struct {
	SSH  SSHConfig  `mapstructure:"ssh"  yaml:"ssh"`
	SFTP SFTPConfig `mapstructure:"sftp" yaml:"sftp"`
}

type SSHConfig struct {
	Host            string        `mapstructure:"host"              yaml:"host"`
	Port            int           `mapstructure:"port"              yaml:"port"`
	User            string        `mapstructure:"user"              yaml:"user"`
	Password        string        `mapstructure:"password"          yaml:"password"`
	PrivateKeyPath  string        `mapstructure:"private_key_path"  yaml:"private_key_path"`
	KnownHostsFile  string        `mapstructure:"known_hosts_file"  yaml:"known_hosts_file"`
	HostKeyChecking bool          `mapstructure:"host_key_checking" yaml:"host_key_checking"`
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	ConnectRetries  int           `mapstructure:"connect_retries"   yaml:"connect_retries"`
	LogLevel        string        `mapstructure:"log_level"         yaml:"log_level"`
}

type SFTPConfig struct {
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ssh.port", session.DefaultSSHPort)
	v.SetDefault("ssh.timeout", session.DefaultConnectTimeout)
	v.SetDefault("ssh.connect_retries", 0)
	v.SetDefault("ssh.log_level", logbridge.LevelNotSet.String())
	v.SetDefault("ssh.host_key_checking", false)
	v.SetDefault("sftp.chunk_size", session.DefaultChunkSize)
}

// BindEnv makes every key readable from SSHKIT_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load validates v and decodes it into a Config.
func Load(v *viper.Viper) (*Config, error) {
	if err := ValidateConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig checks that every required key is present.
func ValidateConfig(v *viper.Viper) error {
	missingFields := []string{}
	for _, field := range requiredFields {
		if !v.IsSet(field) || v.GetString(field) == "" {
			missingFields = append(missingFields, field)
		}
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missingFields, ", "))
	}
	return nil
}

// Validate checks the decoded values.
func (c *Config) Validate() error {
	var errors []string

	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port number: %d", c.SSH.Port))
	}
	if c.SSH.Timeout < 0 {
		errors = append(errors, "timeout must not be negative")
	}
	if c.SSH.ConnectRetries < 0 {
		errors = append(errors, "connect retries must not be negative")
	}
	if _, err := logbridge.ParseLevel(c.SSH.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.SFTP.ChunkSize > engine.MaxRequestPayload {
		errors = append(errors, fmt.Sprintf("chunk size %d exceeds the %d byte request limit",
			c.SFTP.ChunkSize, engine.MaxRequestPayload))
	}
	if c.SSH.PrivateKeyPath != "" {
		path, err := homedir.Expand(c.SSH.PrivateKeyPath)
		if err == nil {
			_, err = os.Stat(path)
		}
		if err != nil {
			errors = append(errors, fmt.Sprintf("unable to read SSH private key file: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

// LogLevel is the engine log level to set on new sessions.
func (c *Config) LogLevel() logbridge.Level {
	level, _ := logbridge.ParseLevel(c.SSH.LogLevel)
	return level
}

// ConnectOptions turns the SSH section into options for Session.Connect.
func (c *Config) ConnectOptions() []session.ConnectOption {
	opts := []session.ConnectOption{
		session.WithHostKeyChecking(c.SSH.HostKeyChecking),
	}
	if c.SSH.User != "" {
		opts = append(opts, session.WithUser(c.SSH.User))
	}
	if c.SSH.Password != "" {
		opts = append(opts, session.WithPassword(c.SSH.Password))
	}
	if c.SSH.PrivateKeyPath != "" {
		opts = append(opts, session.WithPrivateKeyFile(c.SSH.PrivateKeyPath))
	}
	if c.SSH.KnownHostsFile != "" && c.SSH.HostKeyChecking {
		opts = append(opts, session.WithKnownHostsFile(c.SSH.KnownHostsFile))
	}
	if c.SSH.Timeout > 0 {
		opts = append(opts, session.WithTimeout(c.SSH.Timeout))
	}
	return opts
}

func (c *Config) SFTPOptions() []session.SFTPOption {
	return []session.SFTPOption{session.WithChunkSize(c.SFTP.ChunkSize)}
}
