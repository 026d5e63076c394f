package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/bacalhau-project/sshkit/pkg/config"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"github.com/bacalhau-project/sshkit/pkg/session"
	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/viper"
)

const maxBackOffTime = 2 * time.Minute

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// openSession connects a new Session, retrying up to cfg.SSH.ConnectRetries
// times. A failed Session cannot reconnect, so each attempt starts fresh.
// Rejected credentials are not retried.
func openSession(ctx context.Context, cfg *config.Config) (*session.Session, error) {
	l := logger.FromContext(ctx)

	var s *session.Session
	operation := func() error {
		candidate := session.New()
		candidate.SetLogLevel(cfg.LogLevel())
		err := candidate.Connect(ctx, cfg.SSH.Host, cfg.SSH.Port, cfg.ConnectOptions()...)
		if err != nil {
			if errors.Is(err, session.ErrAuthentication) {
				return backoff.Permanent(err)
			}
			return err
		}
		s = candidate
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxBackOffTime
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.SSH.ConnectRetries)), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		l.Warnf("Connecting to %s:%d failed: %v (retrying in %s)", cfg.SSH.Host, cfg.SSH.Port, err, wait)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// withSFTP connects, opens a channel and hands it to fn. Both are closed
// afterwards.
func withSFTP(ctx context.Context, fn func(cfg *config.Config, channel *session.SFTP) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	channel, err := s.SFTP(cfg.SFTPOptions()...)
	if err != nil {
		return err
	}
	defer channel.Close()

	return fn(cfg, channel)
}
