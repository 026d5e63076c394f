package engine

import (
	"fmt"
	"os"
	"os/user"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultKnownHostsFile is consulted when host key checking is on and no file is given.
const DefaultKnownHostsFile = "~/.ssh/known_hosts"

func clientConfig(creds Credentials) (*ssh.ClientConfig, error) {
	username := creds.User
	if username == "" {
		current, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("failed to determine local user: %w", err)
		}
		username = current.Username
	}

	auth, err := authMethods(creds)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(creds)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         creds.Timeout,
	}, nil
}

func authMethods(creds Credentials) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	keyMaterial := creds.PrivateKey
	if len(keyMaterial) == 0 && creds.PrivateKeyPath != "" {
		var err error
		keyMaterial, err = ReadPrivateKey(creds.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
	}
	if len(keyMaterial) > 0 {
		signer, err := ssh.ParsePrivateKey(keyMaterial)
		if err != nil {
			return nil, fmt.Errorf("failed to import private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if creds.Password != "" {
		methods = append(methods, ssh.Password(creds.Password))
	}

	return methods, nil
}

func hostKeyCallback(creds Credentials) (ssh.HostKeyCallback, error) {
	if !creds.HostKeyChecking {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec
	}

	path := creds.KnownHostsFile
	if path == "" {
		path = DefaultKnownHostsFile
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand known hosts path %s: %w", path, err)
	}

	callback, err := knownhosts.New(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts file %s: %w", expanded, err)
	}
	return callback, nil
}

// ReadPrivateKey reads and validates a private key file. A leading "~" is expanded.
func ReadPrivateKey(path string) ([]byte, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand private key path %s: %w", path, err)
	}

	privateKeyBytes, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	if _, err = ssh.ParsePrivateKey(privateKeyBytes); err != nil {
		return nil, fmt.Errorf("failed to import private key: %w", err)
	}

	return privateKeyBytes, nil
}
