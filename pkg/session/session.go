// Package session manages SSH connections and the SFTP channels opened over
// them. A Session owns its transport; an SFTP channel borrows its Session and
// must not be used after the Session is closed.
//
// Session and SFTP values are not safe for concurrent use. Independent
// Sessions may be used from different goroutines.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/bacalhau-project/sshkit/pkg/engine"
	"github.com/bacalhau-project/sshkit/pkg/logbridge"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"go.uber.org/multierr"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one SSH connection.
type Session struct {
	mu sync.Mutex

	engine engine.Engine
	sink   logbridge.Sink
	bridge *logbridge.Bridge

	state     State
	host      string
	port      int
	level     logbridge.Level
	transport engine.Transport
	channels  map[*SFTP]struct{}
}

// New returns an unconnected Session. It performs no I/O. Engine logging starts
// at LevelNotSet.
func New(opts ...Option) *Session {
	s := &Session{
		state:    StateUnconnected,
		level:    logbridge.LevelNotSet,
		channels: make(map[*SFTP]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = engine.NewNativeEngine()
	}
	if s.sink == nil {
		s.sink = logbridge.NewZapSink(logger.Get().Named("engine"))
	}
	s.bridge = logbridge.New(s.sink)
	s.bridge.Attach(s.engine, s.level)
	return s
}

// SetLogLevel sets the engine's verbosity and the severity at which its log
// events are forwarded. A zap sink also takes level as its threshold, so the
// records are not dropped by a logger configured at a higher level. It applies
// to calls made after it returns.
func (s *Session) SetLogLevel(level logbridge.Level) {
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
	s.bridge.Attach(s.engine, level)
}

func (s *Session) LogLevel() logbridge.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Connect dials host:port, runs key exchange and authenticates. It may be
// called once; a Session whose Connect failed is closed and cannot be reused.
func (s *Session) Connect(ctx context.Context, host string, port int, opts ...ConnectOption) error {
	s.mu.Lock()
	switch s.state {
	case StateUnconnected:
	case StateClosed:
		s.mu.Unlock()
		return newError(KindSession, "ssh session is closed", nil)
	default:
		s.mu.Unlock()
		return newError(KindSession, "ssh session is already connected", nil)
	}
	s.state = StateConnecting
	s.host, s.port = host, port
	s.mu.Unlock()

	params := defaultConnectParams()
	for _, opt := range opts {
		opt(&params)
	}

	s.debugf("Connecting to SSH server: %s:%d", host, port)
	conn, err := s.engine.Dial(ctx, host, port, params.timeout)
	if err != nil {
		s.setState(StateClosed)
		return fromEngine(err, KindConnection)
	}
	s.setState(StateConnected)

	transport, err := s.engine.Handshake(ctx, conn, params.credentials())
	if err != nil {
		s.setState(StateClosed)
		return fromEngine(err, KindConnection)
	}

	s.mu.Lock()
	s.transport = transport
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.debugf("Authenticated to %s:%d", host, port)
	return nil
}

// debugf reports the Session's own progress through the bridge, so it obeys
// the configured level like engine records do.
func (s *Session) debugf(format string, args ...interface{}) {
	s.bridge.Log(logbridge.LevelDebug, fmt.Sprintf(format, args...))
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the Session is authenticated and not closed.
func (s *Session) IsConnected() bool {
	return s.State() == StateAuthenticated
}

func (s *Session) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

func (s *Session) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// SFTP opens a new SFTP channel. The Session must be authenticated.
func (s *Session) SFTP(opts ...SFTPOption) (*SFTP, error) {
	params := sftpParams{}
	for _, opt := range opts {
		opt(&params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return nil, newError(KindSession, "ssh session is not authenticated", nil)
	}

	native, err := s.transport.OpenSFTP()
	if err != nil {
		return nil, fromEngine(err, KindChannel)
	}

	channel := &SFTP{
		session:   s,
		native:    native,
		chunkSize: params.normalizedChunkSize(),
	}
	s.channels[channel] = struct{}{}
	return channel, nil
}

// forget drops a closed channel from the Session's bookkeeping. It reports
// whether the Session is still live.
func (s *Session) forget(channel *SFTP) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channel)
	return s.state == StateAuthenticated
}

// Close closes every SFTP channel still open on the Session and then the
// transport. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	channels := s.channels
	s.channels = make(map[*SFTP]struct{})
	transport := s.transport
	s.transport = nil
	s.state = StateClosed
	s.mu.Unlock()

	var errs error
	for channel := range channels {
		errs = multierr.Append(errs, channel.release())
	}

	if transport != nil {
		s.debugf("Disconnecting from %s:%d", s.host, s.port)
		if err := transport.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs == nil {
		return nil
	}
	if len(multierr.Errors(errs)) == 1 {
		return fromEngine(errs, KindSession)
	}
	return newError(KindSession, errs.Error(), errs)
}

// Disconnect is Close.
func (s *Session) Disconnect() error {
	return s.Close()
}
