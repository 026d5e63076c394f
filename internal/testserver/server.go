// Package testserver runs an in-process SSH server with an SFTP subsystem for
// tests.
package testserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/gliderlabs/ssh"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

// Server is a running test server.
type Server struct {
	Host string
	Port int

	// HostKey is the server's public host key.
	HostKey gossh.PublicKey

	srv *ssh.Server
}

type config struct {
	user          string
	password      string
	authorizedKey gossh.PublicKey
}

type Option func(*config)

// WithPassword requires password authentication as user.
func WithPassword(user, password string) Option {
	return func(c *config) {
		c.user = user
		c.password = password
	}
}

// WithAuthorizedKey accepts public key authentication with key, given in
// authorized_keys format.
func WithAuthorizedKey(t *testing.T, key []byte) Option {
	t.Helper()
	pub, _, _, _, err := gossh.ParseAuthorizedKey(key)
	require.NoError(t, err)
	return func(c *config) {
		c.authorizedKey = pub
	}
}

// Start listens on a random loopback port. Without options any client is
// accepted. The server is stopped when the test ends.
func Start(t *testing.T, opts ...Option) *Server {
	t.Helper()

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := gossh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	srv := &ssh.Server{
		Handler: execHandler,
		SubsystemHandlers: map[string]ssh.SubsystemHandler{
			"sftp": sftpHandler,
		},
	}
	srv.AddHostKey(signer)

	if cfg.password != "" {
		srv.PasswordHandler = func(ctx ssh.Context, password string) bool {
			return ctx.User() == cfg.user && password == cfg.password
		}
	}
	if cfg.authorizedKey != nil {
		srv.PublicKeyHandler = func(_ ssh.Context, key ssh.PublicKey) bool {
			return ssh.KeysEqual(key, cfg.authorizedKey)
		}
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = srv.Serve(l)
	}()
	t.Cleanup(func() {
		_ = srv.Close()
	})

	addr := l.Addr().(*net.TCPAddr)
	return &Server{
		Host:    addr.IP.String(),
		Port:    addr.Port,
		HostKey: signer.PublicKey(),
		srv:     srv,
	}
}

// KnownHostsLine renders the server's host key as a known_hosts entry.
func (s *Server) KnownHostsLine() string {
	return fmt.Sprintf("[%s]:%d %s", s.Host, s.Port, strings.TrimSpace(string(gossh.MarshalAuthorizedKey(s.HostKey))))
}

func sftpHandler(s ssh.Session) {
	server, err := sftp.NewServer(s)
	if err != nil {
		_ = s.Exit(1)
		return
	}
	if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
		_ = server.Close()
		_ = s.Exit(1)
		return
	}
	_ = server.Close()
	_ = s.Exit(0)
}

// execHandler understands a handful of commands: echo, true, false and
// exit N. Anything else exits 127.
func execHandler(s ssh.Session) {
	args := s.Command()
	if len(args) == 0 {
		_, _ = io.WriteString(s.Stderr(), "interactive shells are not supported\n")
		_ = s.Exit(1)
		return
	}

	switch args[0] {
	case "echo":
		_, _ = io.WriteString(s, strings.Join(args[1:], " ")+"\n")
		_ = s.Exit(0)
	case "true":
		_ = s.Exit(0)
	case "false":
		_ = s.Exit(1)
	case "exit":
		code := 0
		if len(args) > 1 {
			_, _ = fmt.Sscanf(args[1], "%d", &code)
		}
		_ = s.Exit(code)
	default:
		_, _ = fmt.Fprintf(s.Stderr(), "%s: command not found\n", args[0])
		_ = s.Exit(127)
	}
}
