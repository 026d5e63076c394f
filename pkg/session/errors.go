package session

import (
	"errors"

	"github.com/bacalhau-project/sshkit/pkg/engine"
)

// Kind classifies a session failure.
type Kind int

const (
	// KindSession is the generic failure every other kind specializes.
	KindSession Kind = iota
	KindConnection
	KindAuthentication
	KindChannel
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAuthentication:
		return "authentication"
	case KindChannel:
		return "channel"
	case KindIO:
		return "io"
	default:
		return "session"
	}
}

type kindError Kind

func (k kindError) Error() string {
	return "ssh " + Kind(k).String() + " error"
}

// Sentinels for errors.Is. Every *Error matches ErrSession.
var (
	ErrSession        error = kindError(KindSession)
	ErrConnection     error = kindError(KindConnection)
	ErrAuthentication error = kindError(KindAuthentication)
	ErrChannel        error = kindError(KindChannel)
	ErrIO             error = kindError(KindIO)
)

// Error is returned by every fallible Session and SFTP call. Error() is the
// engine's diagnostic text, unmodified.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	k, ok := target.(kindError)
	if !ok {
		return false
	}
	return Kind(k) == KindSession || Kind(k) == e.Kind
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// fromEngine translates an engine failure. fallback is used when err carries
// no engine code.
func fromEngine(err error, fallback Kind) *Error {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return &Error{Kind: kindForCode(ee.Code, fallback), Msg: ee.Msg, Err: ee}
	}
	return &Error{Kind: fallback, Msg: err.Error(), Err: err}
}

func kindForCode(code engine.Code, fallback Kind) Kind {
	switch code {
	case engine.CodeConnect:
		return KindConnection
	case engine.CodeAuthDenied:
		return KindAuthentication
	case engine.CodeChannel, engine.CodeSFTP:
		return KindChannel
	case engine.CodeFatal:
		return KindSession
	default:
		return fallback
	}
}

// ioError wraps a local file system failure.
func ioError(err error) *Error {
	return newError(KindIO, err.Error(), err)
}
