package session

import (
	"time"

	"github.com/bacalhau-project/sshkit/pkg/engine"
	"github.com/bacalhau-project/sshkit/pkg/logbridge"
	"go.uber.org/zap"
)

// Option configures a Session at construction.
type Option func(*Session)

// WithEngine replaces the native engine, mostly for tests.
func WithEngine(e engine.Engine) Option {
	return func(s *Session) {
		s.engine = e
	}
}

// WithLogger sends engine log records to l.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.sink = logbridge.NewZapSink(l)
	}
}

// WithLogSink sends engine log records to sink.
func WithLogSink(sink logbridge.Sink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// ConnectOption configures a single Connect call.
type ConnectOption func(*connectParams)

type connectParams struct {
	user            string
	password        string
	privateKey      []byte
	privateKeyPath  string
	knownHostsFile  string
	hostKeyChecking bool
	timeout         time.Duration
}

func defaultConnectParams() connectParams {
	return connectParams{timeout: DefaultConnectTimeout}
}

func (p connectParams) credentials() engine.Credentials {
	return engine.Credentials{
		User:            p.user,
		Password:        p.password,
		PrivateKey:      p.privateKey,
		PrivateKeyPath:  p.privateKeyPath,
		KnownHostsFile:  p.knownHostsFile,
		HostKeyChecking: p.hostKeyChecking,
		Timeout:         p.timeout,
	}
}

// WithUser sets the login name. The local user name is used when empty.
func WithUser(user string) ConnectOption {
	return func(p *connectParams) {
		p.user = user
	}
}

func WithPassword(password string) ConnectOption {
	return func(p *connectParams) {
		p.password = password
	}
}

// WithPrivateKey authenticates with PEM encoded key material.
func WithPrivateKey(key []byte) ConnectOption {
	return func(p *connectParams) {
		p.privateKey = key
	}
}

// WithPrivateKeyFile authenticates with the key at path; "~" is expanded.
func WithPrivateKeyFile(path string) ConnectOption {
	return func(p *connectParams) {
		p.privateKeyPath = path
	}
}

// WithKnownHostsFile enables host key checking against path.
func WithKnownHostsFile(path string) ConnectOption {
	return func(p *connectParams) {
		p.knownHostsFile = path
		p.hostKeyChecking = true
	}
}

func WithHostKeyChecking(enabled bool) ConnectOption {
	return func(p *connectParams) {
		p.hostKeyChecking = enabled
	}
}

// WithTimeout bounds the TCP connect and the handshake separately.
func WithTimeout(d time.Duration) ConnectOption {
	return func(p *connectParams) {
		p.timeout = d
	}
}

// SFTPOption configures a channel opened by Session.SFTP.
type SFTPOption func(*sftpParams)

type sftpParams struct {
	chunkSize int
}

// WithChunkSize sets the transfer chunk size. Values above
// engine.MaxRequestPayload are clamped; n <= 0 selects DefaultChunkSize.
func WithChunkSize(n int) SFTPOption {
	return func(p *sftpParams) {
		p.chunkSize = n
	}
}

func (p sftpParams) normalizedChunkSize() int {
	switch {
	case p.chunkSize <= 0:
		return DefaultChunkSize
	case p.chunkSize > engine.MaxRequestPayload:
		return engine.MaxRequestPayload
	default:
		return p.chunkSize
	}
}
