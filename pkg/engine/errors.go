package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"unicode"
	"unicode/utf8"
)

// Code classifies a native failure.
type Code int

const (
	CodeFatal Code = iota + 1
	CodeConnect
	CodeAuthDenied
	CodeChannel
	CodeSFTP
)

func (c Code) String() string {
	switch c {
	case CodeFatal:
		return "fatal"
	case CodeConnect:
		return "connect"
	case CodeAuthDenied:
		return "auth_denied"
	case CodeChannel:
		return "channel"
	case CodeSFTP:
		return "sftp"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is a native failure: a code plus the engine's diagnostic text.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or 0.
func CodeOf(err error) Code {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 0
}

// dialFailureText renders a dial error the way the engine reports it, e.g.
// "ssh connect failed: Connection refused".
func dialFailureText(host string, err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("Failed to resolve hostname %s (%s)", host, dnsErr.Err)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return "ssh connect failed: " + strerror(errno)
	}

	if errors.Is(err, context.Canceled) {
		return "ssh connect failed: Interrupted system call"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ssh connect failed: Timeout connecting to " + host
	}

	return "ssh connect failed: " + err.Error()
}

func strerror(errno syscall.Errno) string {
	s := errno.Error()
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// x/crypto/ssh reports client authentication failures only as text: the
// wording below comes from clientAuthenticate (ssh/client_auth.go) and from a
// server disconnect with SSH_DISCONNECT_NO_MORE_AUTH_METHODS_AVAILABLE.
// ssh.ServerAuthError is server side and never reaches a client. Both strings
// are pinned to the x/crypto version in go.mod.
const (
	authFailureText    = "ssh: unable to authenticate"
	authDisconnectText = "ssh: disconnect, reason 14:"
)

func isAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, authFailureText) || strings.Contains(msg, authDisconnectText)
}
