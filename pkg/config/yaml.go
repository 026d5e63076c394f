package config

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

const redacted = "********"

type yamlSSHConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user,omitempty"`
	Password        string `yaml:"password,omitempty"`
	PrivateKeyPath  string `yaml:"private_key_path,omitempty"`
	KnownHostsFile  string `yaml:"known_hosts_file,omitempty"`
	HostKeyChecking bool   `yaml:"host_key_checking"`
	Timeout         string `yaml:"timeout"`
	ConnectRetries  int    `yaml:"connect_retries"`
	LogLevel        string `yaml:"log_level"`
}

type yamlConfig struct {
	SSH  yamlSSHConfig `yaml:"ssh"`
	SFTP SFTPConfig    `yaml:"sftp"`
}

// YAML renders c in the config file format. The password is masked.
func (c *Config) YAML() ([]byte, error) {
	out := yamlConfig{
		SSH: yamlSSHConfig{
			Host:            c.SSH.Host,
			Port:            c.SSH.Port,
			User:            c.SSH.User,
			PrivateKeyPath:  c.SSH.PrivateKeyPath,
			KnownHostsFile:  c.SSH.KnownHostsFile,
			HostKeyChecking: c.SSH.HostKeyChecking,
			Timeout:         c.SSH.Timeout.String(),
			ConnectRetries:  c.SSH.ConnectRetries,
			LogLevel:        c.LogLevel().String(),
		},
		SFTP: c.SFTP,
	}
	if c.SSH.Password != "" {
		out.SSH.Password = redacted
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
