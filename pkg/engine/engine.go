// Package engine adapts the SSH wire implementation (golang.org/x/crypto/ssh and
// github.com/pkg/sftp) behind the narrow set of calls the session layer needs:
// dial, handshake, SFTP channel and file handles, plus numeric log verbosity and
// a log callback.
package engine

import (
	"context"
	"io"
	"net"
	"time"
)

// Verbosity is the engine's native log priority scale. Higher is noisier.
type Verbosity int

const (
	VerbosityNone Verbosity = iota
	VerbosityWarn
	VerbosityInfo
	VerbosityDebug
	// VerbosityTrace enables function level traces such as socket poll callbacks.
	VerbosityTrace
)

func (v Verbosity) String() string {
	switch v {
	case VerbosityNone:
		return "none"
	case VerbosityWarn:
		return "warn"
	case VerbosityInfo:
		return "info"
	case VerbosityDebug:
		return "debug"
	case VerbosityTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// MaxRequestPayload is the largest payload a single SFTP read or write request
// may carry. Every SFTP server must accept requests of this size.
const MaxRequestPayload = 32 * 1024

// LogCallback receives one native log event. message already carries the
// "function: " prefix.
type LogCallback func(priority Verbosity, function, message string)

// Credentials carries everything the handshake needs to authenticate.
type Credentials struct {
	User            string
	Password        string
	PrivateKey      []byte
	PrivateKeyPath  string
	KnownHostsFile  string
	HostKeyChecking bool
	Timeout         time.Duration
}

// Engine is the transport engine the session layer drives.
type Engine interface {
	SetLogVerbosity(v Verbosity)
	// SetLogCallback registers cb for native log events. A nil cb unregisters.
	SetLogCallback(cb LogCallback)
	// Dial opens the TCP connection to host:port.
	Dial(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error)
	// Handshake runs key exchange and authentication over conn. conn is closed
	// when the handshake fails.
	Handshake(ctx context.Context, conn net.Conn, creds Credentials) (Transport, error)
}

// Transport is one live, authenticated SSH connection.
type Transport interface {
	OpenSFTP() (SFTP, error)
	Exec(cmd string) (*ExecResult, error)
	Close() error
}

// SFTP is one SFTP subsystem channel.
type SFTP interface {
	// OpenFile opens path with os.O_* flags.
	OpenFile(path string, flags int) (File, error)
	Close() error
}

// File is a remote file handle. Read returns io.EOF unwrapped at end of file.
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// ExecResult is the outcome of one remote command.
type ExecResult struct {
	Stdout     []byte
	Stderr     []byte
	ExitStatus int
}
