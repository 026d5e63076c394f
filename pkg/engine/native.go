package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Version is reported in the connect banner.
const Version = "0.4.0"

// Banner is logged at info priority at the start of every connect.
var Banner = fmt.Sprintf(
	"sshkit %s (c) 2024-2026 Bacalhau Project and sshkit contributors. Distributed under the Apache License 2.0.",
	Version,
)

// NativeEngine implements Engine on golang.org/x/crypto/ssh and github.com/pkg/sftp.
type NativeEngine struct {
	mu        sync.RWMutex
	verbosity Verbosity
	callback  LogCallback
}

var _ Engine = (*NativeEngine)(nil)

func NewNativeEngine() *NativeEngine {
	return &NativeEngine{}
}

func (e *NativeEngine) SetLogVerbosity(v Verbosity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verbosity = v
}

func (e *NativeEngine) SetLogCallback(cb LogCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callback = cb
}

func (e *NativeEngine) logf(priority Verbosity, function, format string, args ...interface{}) {
	e.mu.RLock()
	cb, verbosity := e.callback, e.verbosity
	e.mu.RUnlock()

	if cb == nil || priority == VerbosityNone || priority > verbosity {
		return
	}
	cb(priority, function, function+": "+fmt.Sprintf(format, args...))
}

func (e *NativeEngine) Dial(
	ctx context.Context,
	host string,
	port int,
	timeout time.Duration,
) (net.Conn, error) {
	e.logf(VerbosityInfo, "ssh_connect", "%s", Banner)

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	e.logf(VerbosityDebug, "ssh_connect", "Connecting to %s", addr)

	var fd atomic.Uintptr
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(socket uintptr) {
				fd.Store(socket)
				e.logf(VerbosityTrace, "ssh_socket_pollcallback",
					"Poll callback on socket %d (POLLOUT ), out buffer 0", socket)
			})
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		msg := dialFailureText(host, err)
		e.logf(VerbosityTrace, "ssh_socket_pollcallback",
			"Poll callback on socket %d (POLLERR ), out buffer 0", fd.Load())
		e.logf(VerbosityWarn, "ssh_connect", "%s", msg)
		return nil, newError(CodeConnect, err, "%s", msg)
	}

	e.logf(VerbosityDebug, "ssh_connect", "Socket connected to %s", addr)
	return &tracedConn{Conn: conn, engine: e, fd: fd.Load()}, nil
}

func (e *NativeEngine) Handshake(
	ctx context.Context,
	conn net.Conn,
	creds Credentials,
) (Transport, error) {
	addr := conn.RemoteAddr().String()

	config, err := clientConfig(creds)
	if err != nil {
		conn.Close()
		return nil, newError(CodeFatal, err, "%v", err)
	}

	if creds.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(creds.Timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	e.logf(VerbosityDebug, "ssh_client_connection_callback", "Starting key exchange with %s", addr)
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		if isAuthFailure(err) {
			e.logf(VerbosityWarn, "ssh_userauth", "%v", err)
			return nil, newError(CodeAuthDenied, err, "%v", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, newError(CodeConnect, ctxErr, "ssh connect failed: %v", ctxErr)
		}
		e.logf(VerbosityWarn, "ssh_client_connection_callback", "%v", err)
		return nil, newError(CodeConnect, err, "%v", err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(clientConn, chans, reqs)
	e.logf(VerbosityInfo, "ssh_analyze_banner", "Analyzing banner: %s", client.ServerVersion())
	e.logf(VerbosityDebug, "ssh_userauth", "Authentication successful for %s", config.User)

	return &nativeTransport{engine: e, client: client}, nil
}

type nativeTransport struct {
	engine *NativeEngine
	client *ssh.Client
}

func (t *nativeTransport) OpenSFTP() (SFTP, error) {
	t.engine.logf(VerbosityDebug, "sftp_new", "Opening sftp subsystem")
	client, err := sftp.NewClient(t.client, sftp.MaxPacket(MaxRequestPayload))
	if err != nil {
		return nil, newError(CodeChannel, err, "Error initializing sftp subsystem: %v", err)
	}
	return &nativeSFTP{engine: t.engine, client: client}, nil
}

func (t *nativeTransport) Exec(cmd string) (*ExecResult, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return nil, newError(CodeChannel, err, "Failed to open a session channel: %v", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	t.engine.logf(VerbosityDebug, "ssh_channel_request_exec", "Executing command: %s", cmd)
	result := &ExecResult{}
	if err := session.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return nil, newError(CodeChannel, err, "Failed to execute command [%s]: %v", cmd, err)
		}
		result.ExitStatus = exitErr.ExitStatus()
	}
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	return result, nil
}

func (t *nativeTransport) Close() error {
	t.engine.logf(VerbosityDebug, "ssh_disconnect", "Disconnecting from %s", t.client.RemoteAddr())
	if err := t.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return newError(CodeFatal, err, "ssh disconnect failed: %v", err)
	}
	return nil
}

// tracedConn logs socket activity at trace priority.
type tracedConn struct {
	net.Conn
	engine *NativeEngine
	fd     uintptr
}

func (c *tracedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.engine.logf(VerbosityTrace, "ssh_socket_pollcallback",
		"Poll callback on socket %d (POLLIN ), in buffer %d", c.fd, n)
	return n, err
}

func (c *tracedConn) Write(p []byte) (int, error) {
	c.engine.logf(VerbosityTrace, "ssh_socket_pollcallback",
		"Poll callback on socket %d (POLLOUT ), out buffer %d", c.fd, len(p))
	return c.Conn.Write(p)
}
