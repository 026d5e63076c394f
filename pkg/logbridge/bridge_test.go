package logbridge

import (
	"testing"

	"github.com/bacalhau-project/sshkit/pkg/engine"
	"github.com/bacalhau-project/sshkit/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type record struct {
	level   Level
	message string
}

func collect(records *[]record) Sink {
	return SinkFunc(func(level Level, message string) {
		*records = append(*records, record{level, message})
	})
}

func TestAttachSetsVerbosityAndCallback(t *testing.T) {
	eng := new(engine.MockEngine)
	eng.On("SetLogVerbosity", engine.VerbosityDebug).Return().Once()
	eng.On("SetLogCallback", mock.AnythingOfType("engine.LogCallback")).Return().Once()

	b := New(SinkFunc(func(Level, string) {}))
	b.Attach(eng, LevelDebug)

	assert.Equal(t, LevelDebug, b.Level())
	eng.AssertExpectations(t)
}

func TestAttachNotSetRemovesCallback(t *testing.T) {
	eng := new(engine.MockEngine)
	eng.On("SetLogVerbosity", engine.VerbosityNone).Return().Once()
	eng.On("SetLogCallback", mock.MatchedBy(func(cb engine.LogCallback) bool {
		return cb == nil
	})).Return().Once()

	b := New(SinkFunc(func(Level, string) {}))
	b.Attach(eng, LevelNotSet)

	eng.AssertExpectations(t)
}

func TestHandleFiltersBelowConfiguredLevel(t *testing.T) {
	var records []record
	b := New(collect(&records))
	eng := engine.NewNativeEngine()
	b.Attach(eng, LevelInfo)

	b.Handle(engine.VerbosityTrace, "ssh_socket_pollcallback", "ssh_socket_pollcallback: trace")
	b.Handle(engine.VerbosityDebug, "ssh_connect", "ssh_connect: debug")
	b.Handle(engine.VerbosityInfo, "ssh_connect", "ssh_connect: info")
	b.Handle(engine.VerbosityWarn, "ssh_connect", "ssh_connect: warn")

	require.Len(t, records, 2)
	assert.Equal(t, record{LevelInfo, "ssh_connect: info"}, records[0])
	assert.Equal(t, record{LevelWarning, "ssh_connect: warn"}, records[1])
}

func TestHandleForwardsEverythingAtTrace(t *testing.T) {
	var records []record
	b := New(collect(&records))
	b.Attach(engine.NewNativeEngine(), LevelTrace)

	b.Handle(engine.VerbosityTrace, "f", "f: one")
	b.Handle(engine.VerbosityWarn, "f", "f: two")

	require.Len(t, records, 2)
	assert.Equal(t, LevelTrace, records[0].level)
	assert.Equal(t, "f: one", records[0].message)
}

func TestHandleAtNotSetForwardsNothing(t *testing.T) {
	var records []record
	b := New(collect(&records))

	b.Handle(engine.VerbosityWarn, "f", "f: dropped")
	assert.Empty(t, records)
}

func TestZapSink(t *testing.T) {
	l, logs := logger.NewObservedLogger(logger.TraceLevel)
	sink := NewZapSink(l.Logger)

	sink.Log(LevelTrace, "ssh_socket_pollcallback: Poll callback on socket 3 (POLLOUT ), out buffer 0")
	sink.Log(LevelInfo, "ssh_connect: banner")
	sink.Log(LevelNotSet, "never written")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, logger.TraceLevel, entries[0].Level)
	assert.Equal(t, "TRACE", logger.LevelName(entries[0].Level))
	assert.Equal(t, "ssh_connect: banner", entries[1].Message)
}

func TestZapSinkRespectsLoggerLevel(t *testing.T) {
	l, logs := logger.NewObservedLogger(logger.ParseLevel("info"))
	sink := NewZapSink(l.Logger)

	sink.Log(LevelDebug, "dropped by the core")
	sink.Log(LevelError, "kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestLogAppliesLevelGate(t *testing.T) {
	var records []record
	b := New(collect(&records))

	b.Log(LevelError, "dropped while not set")
	assert.Empty(t, records)

	b.Attach(engine.NewNativeEngine(), LevelDebug)
	b.Log(LevelTrace, "dropped below debug")
	b.Log(LevelDebug, "kept")

	require.Len(t, records, 1)
	assert.Equal(t, record{LevelDebug, "kept"}, records[0])
}

func TestZapSinkLevelOverridesLogger(t *testing.T) {
	l, logs := logger.NewObservedLogger(zapcore.InfoLevel)
	sink := NewZapSink(l.Logger)

	sink.SetLevel(LevelTrace)
	sink.Log(LevelTrace, "ssh_socket_pollcallback: trace")
	sink.Log(LevelDebug, "ssh_connect: debug")
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, logger.TraceLevel, logs.All()[0].Level)

	sink.SetLevel(LevelWarning)
	sink.Log(LevelInfo, "dropped by the sink")
	assert.Equal(t, 2, logs.Len())

	sink.SetLevel(LevelNotSet)
	sink.Log(LevelDebug, "dropped by the core again")
	sink.Log(LevelInfo, "kept by the core")
	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "kept by the core", logs.All()[2].Message)
}

func TestAttachArmsZapSink(t *testing.T) {
	l, logs := logger.NewObservedLogger(zapcore.InfoLevel)
	b := New(NewZapSink(l.Logger))
	b.Attach(engine.NewNativeEngine(), LevelTrace)

	b.Handle(engine.VerbosityTrace, "ssh_socket_pollcallback", "ssh_socket_pollcallback: Poll callback on socket 3 (POLLIN ), in buffer 0")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "TRACE", logger.LevelName(logs.All()[0].Level))
}

func TestZapSinkOmitsCaller(t *testing.T) {
	core, logs := observer.New(logger.TraceLevel)
	sink := NewZapSink(zap.New(core, zap.AddCaller()))

	sink.Log(LevelInfo, "ssh_connect: banner")

	require.Equal(t, 1, logs.Len())
	assert.False(t, logs.All()[0].Caller.Defined)
}
