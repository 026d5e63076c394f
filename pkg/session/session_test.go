package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bacalhau-project/sshkit/internal/testserver"
	"github.com/bacalhau-project/sshkit/internal/testutil"
	"github.com/bacalhau-project/sshkit/pkg/logbridge"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

func observedSession(t *testing.T, level logbridge.Level) (*Session, *observer.ObservedLogs) {
	t.Helper()
	l, logs := logger.NewObservedLogger(logger.TraceLevel)
	s := New(WithLogger(l.Logger))
	s.SetLogLevel(level)
	t.Cleanup(func() { _ = s.Close() })
	return s, logs
}

func refusedConnect(t *testing.T, s *Session) error {
	t.Helper()
	return s.Connect(context.Background(), "127.0.0.1", testutil.FreePort(t), WithTimeout(5*time.Second))
}

func messagesContaining(logs *observer.ObservedLogs, substr string) []observer.LoggedEntry {
	return logs.FilterMessageSnippet(substr).All()
}

func TestNewPerformsNoIO(t *testing.T) {
	s := New()
	assert.Equal(t, StateUnconnected, s.State())
	assert.False(t, s.IsConnected())
	assert.Equal(t, logbridge.LevelNotSet, s.LogLevel())
	assert.NoError(t, s.Close())
}

func TestConnectRefused(t *testing.T) {
	s := New()

	err := refusedConnect(t, s)
	require.Error(t, err)
	assert.EqualError(t, err, "ssh connect failed: Connection refused")
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, ErrSession)
	assert.NotErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, StateClosed, s.State())

	err = s.Connect(context.Background(), "127.0.0.1", 22)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSession)
	assert.NotErrorIs(t, err, ErrConnection)
}

func TestLogLevelDebugCapturesBanner(t *testing.T) {
	s, logs := observedSession(t, logbridge.LevelDebug)
	require.Error(t, refusedConnect(t, s))

	banners := messagesContaining(logs, "and sshkit contributors.")
	require.NotEmpty(t, banners)
	for _, entry := range banners {
		assert.Contains(t, []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel}, entry.Level)
	}
	assert.Empty(t, logs.FilterLevelExact(logger.TraceLevel).All())
	assert.Empty(t, messagesContaining(logs, "ssh_socket_pollcallback"))
}

func TestLogLevelNotSetCapturesNothing(t *testing.T) {
	s, logs := observedSession(t, logbridge.LevelNotSet)
	require.Error(t, refusedConnect(t, s))

	assert.Zero(t, logs.Len())
}

func TestLogLevelTraceCapturesSocketTraces(t *testing.T) {
	s, logs := observedSession(t, logbridge.LevelTrace)
	require.Error(t, refusedConnect(t, s))

	traces := messagesContaining(logs, "ssh_socket_pollcallback: Poll callback on socket")
	require.NotEmpty(t, traces)
	for _, entry := range traces {
		assert.Equal(t, "TRACE", logger.LevelName(entry.Level))
	}
}

func TestLogLevelWarningDropsInfo(t *testing.T) {
	s, logs := observedSession(t, logbridge.LevelWarning)
	require.Error(t, refusedConnect(t, s))

	assert.Empty(t, messagesContaining(logs, "and sshkit contributors."))
	failures := messagesContaining(logs, "ssh connect failed: Connection refused")
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.WarnLevel, failures[0].Level)
}

func TestSetLogLevelAfterConnectAttempt(t *testing.T) {
	l, logs := logger.NewObservedLogger(logger.TraceLevel)
	first := New(WithLogger(l.Logger))
	first.SetLogLevel(logbridge.LevelTrace)
	require.Error(t, refusedConnect(t, first))
	require.NotZero(t, logs.Len())

	logs.TakeAll()
	first.SetLogLevel(logbridge.LevelNotSet)
	second := New(WithLogger(l.Logger))
	require.Error(t, refusedConnect(t, second))
	assert.Zero(t, logs.Len())
}

// observeGlobalLogger points the global logger at an observer for the test.
func observeGlobalLogger(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	l, logs := logger.NewObservedLogger(level)
	previous := logger.Get()
	logger.SetGlobalLogger(l)
	t.Cleanup(func() { logger.SetGlobalLogger(previous) })
	return logs
}

func TestNotSetWritesNothingToGlobalLogger(t *testing.T) {
	logs := observeGlobalLogger(t, logger.TraceLevel)

	s := New()
	s.SetLogLevel(logbridge.LevelNotSet)
	require.Error(t, refusedConnect(t, s))
	_, err := s.SFTP()
	require.Error(t, err)
	require.NoError(t, s.Close())

	assert.Zero(t, logs.Len())
}

func TestDebugReportsSessionProgress(t *testing.T) {
	logs := observeGlobalLogger(t, logger.TraceLevel)

	s := New()
	s.SetLogLevel(logbridge.LevelDebug)
	require.Error(t, refusedConnect(t, s))

	progress := messagesContaining(logs, "Connecting to SSH server: 127.0.0.1:")
	require.Len(t, progress, 1)
	assert.Equal(t, zapcore.DebugLevel, progress[0].Level)

	logs.TakeAll()
	quiet := New()
	quiet.SetLogLevel(logbridge.LevelWarning)
	require.Error(t, refusedConnect(t, quiet))
	assert.Empty(t, messagesContaining(logs, "Connecting to SSH server"))
}

func TestSetLogLevelOverridesGlobalLoggerLevel(t *testing.T) {
	previous := logger.Get()
	t.Cleanup(func() {
		logger.SetGlobalLogger(previous)
		logger.SetLevel(zapcore.InfoLevel)
	})
	const bufferSize = 1000
	require.NoError(t, logger.Initialize(logger.Config{Level: "info", EnableBuffer: true, BufferSize: bufferSize}))

	s := New()
	s.SetLogLevel(logbridge.LevelTrace)
	require.Error(t, refusedConnect(t, s))

	var traces, debugs int
	for _, line := range logger.GetLastLines(bufferSize) {
		if strings.Contains(line, "TRACE") && strings.Contains(line, "ssh_socket_pollcallback") {
			traces++
		}
		if strings.Contains(line, "DEBUG") && strings.Contains(line, "Connecting to SSH server") {
			debugs++
		}
	}
	assert.NotZero(t, traces)
	assert.Equal(t, 1, debugs)

	logger.Get().Debug("application debug line")
	for _, line := range logger.GetLastLines(bufferSize) {
		assert.NotContains(t, line, "application debug line")
	}
}

func TestSessionsDoNotShareLogLevel(t *testing.T) {
	traced, tracedLogs := observedSession(t, logbridge.LevelTrace)
	quiet, quietLogs := observedSession(t, logbridge.LevelNotSet)

	require.Error(t, refusedConnect(t, traced))
	require.Error(t, refusedConnect(t, quiet))

	assert.NotZero(t, tracedLogs.Len())
	assert.Zero(t, quietLogs.Len())
}

func TestConnectWithPassword(t *testing.T) {
	srv := testserver.Start(t, testserver.WithPassword("sshkit", "secret"))
	s := New()
	defer s.Close()

	require.NoError(t, s.Connect(context.Background(), srv.Host, srv.Port,
		WithUser("sshkit"), WithPassword("secret")))
	assert.True(t, s.IsConnected())
	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, srv.Host, s.Host())
	assert.Equal(t, srv.Port, s.Port())

	err := s.Connect(context.Background(), srv.Host, srv.Port)
	require.Error(t, err)
	assert.EqualError(t, err, "ssh session is already connected")
	assert.True(t, s.IsConnected())

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Disconnect())
	assert.Equal(t, StateClosed, s.State())
}

func TestConnectWrongPassword(t *testing.T) {
	srv := testserver.Start(t, testserver.WithPassword("sshkit", "secret"))
	s := New()

	err := s.Connect(context.Background(), srv.Host, srv.Port, WithUser("sshkit"), WithPassword("guess"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.NotErrorIs(t, err, ErrConnection)
	assert.Equal(t, StateClosed, s.State())
}

func TestConnectWithPrivateKeyFile(t *testing.T) {
	publicKeyPath, cleanupPublic, privateKeyPath, cleanupPrivate := testutil.CreateSSHPublicPrivateKeyPairOnDisk()
	defer cleanupPublic()
	defer cleanupPrivate()

	publicKey, err := os.ReadFile(publicKeyPath)
	require.NoError(t, err)
	srv := testserver.Start(t, testserver.WithAuthorizedKey(t, publicKey))

	s := New()
	defer s.Close()
	require.NoError(t, s.Connect(context.Background(), srv.Host, srv.Port,
		WithUser("sshkit"), WithPrivateKeyFile(privateKeyPath)))
	assert.True(t, s.IsConnected())
}

func TestConnectWithKnownHostsFile(t *testing.T) {
	srv := testserver.Start(t)
	knownHosts := testutil.WriteFile(t, t.TempDir(), "known_hosts", []byte(srv.KnownHostsLine()+"\n"))

	s := New()
	defer s.Close()
	require.NoError(t, s.Connect(context.Background(), srv.Host, srv.Port,
		WithUser("sshkit"), WithKnownHostsFile(knownHosts)))
}

func TestConnectHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	err := s.Connect(ctx, "127.0.0.1", testutil.FreePort(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSFTPBeforeConnect(t *testing.T) {
	s := New()

	channel, err := s.SFTP()
	assert.Nil(t, channel)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSession)
	assert.NotErrorIs(t, err, ErrChannel)
}

func TestExec(t *testing.T) {
	srv := testserver.Start(t)
	s := New()
	defer s.Close()
	require.NoError(t, s.Connect(context.Background(), srv.Host, srv.Port, WithUser("sshkit")))

	res, err := s.Exec("echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, "echo hello", res.Command)

	res, err = s.Exec("exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitStatus)
	assert.False(t, res.Success())

	require.NoError(t, s.Close())
	_, err = s.Exec("echo late")
	assert.ErrorIs(t, err, ErrSession)
}

func TestParallelSessions(t *testing.T) {
	srv := testserver.Start(t)
	dir := t.TempDir()

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 4; i++ {
		i := i
		g.Go(func() error {
			s := New()
			defer s.Close()
			if err := s.Connect(ctx, srv.Host, srv.Port, WithUser("sshkit")); err != nil {
				return err
			}

			channel, err := s.SFTP(WithChunkSize(4096))
			if err != nil {
				return err
			}
			defer channel.Close()

			payload := bytes.Repeat([]byte{byte('a' + i)}, 10000+i)
			local := filepath.Join(dir, fmt.Sprintf("in-%d", i))
			remote := filepath.Join(dir, fmt.Sprintf("remote-%d", i))
			back := filepath.Join(dir, fmt.Sprintf("out-%d", i))
			if err := os.WriteFile(local, payload, 0o600); err != nil {
				return err
			}
			if err := channel.Put(local, remote); err != nil {
				return err
			}
			if err := channel.Get(remote, back); err != nil {
				return err
			}
			got, err := os.ReadFile(back)
			if err != nil {
				return err
			}
			if !bytes.Equal(payload, got) {
				return fmt.Errorf("session %d: round trip mismatch", i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.True(t, strings.HasPrefix(State(42).String(), "state("))
}
