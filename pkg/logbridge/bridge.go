package logbridge

import (
	"sync"

	"github.com/bacalhau-project/sshkit/pkg/engine"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives forwarded records.
type Sink interface {
	Log(level Level, message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level Level, message string)

func (f SinkFunc) Log(level Level, message string) {
	f(level, message)
}

// LevelSetter is implemented by sinks that follow the bridge's level.
type LevelSetter interface {
	SetLevel(level Level)
}

// Bridge forwards native log events at or above its configured level to a Sink.
type Bridge struct {
	mu    sync.RWMutex
	level Level
	sink  Sink
}

func New(sink Sink) *Bridge {
	return &Bridge{sink: sink, level: LevelNotSet}
}

func (b *Bridge) Level() Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.level
}

// Attach sets eng's native verbosity for level and subscribes Handle to its log
// events. At LevelNotSet the callback is removed instead.
func (b *Bridge) Attach(eng engine.Engine, level Level) {
	b.mu.Lock()
	b.level = level
	sink := b.sink
	b.mu.Unlock()

	if ls, ok := sink.(LevelSetter); ok {
		ls.SetLevel(level)
	}
	eng.SetLogVerbosity(VerbosityFor(level))
	if level == LevelNotSet || sink == nil {
		eng.SetLogCallback(nil)
		return
	}
	eng.SetLogCallback(b.Handle)
}

// Handle is the engine.LogCallback. The message is forwarded unchanged.
func (b *Bridge) Handle(priority engine.Verbosity, function, message string) {
	b.Log(LevelForPriority(priority), message)
}

// Log forwards message when level is at or above the configured level. Nothing
// is forwarded at LevelNotSet.
func (b *Bridge) Log(level Level, message string) {
	b.mu.RLock()
	configured, sink := b.level, b.sink
	b.mu.RUnlock()

	if configured == LevelNotSet || sink == nil || level < configured {
		return
	}
	sink.Log(level, message)
}

// ZapSink writes records to a zap logger. Once SetLevel is called with a level
// other than LevelNotSet, that level replaces the logger's own threshold, so
// TRACE and DEBUG records reach cores configured at info.
type ZapSink struct {
	logger *zap.Logger

	mu        sync.RWMutex
	threshold zapcore.Level
	armed     bool
}

func NewZapSink(l *zap.Logger) *ZapSink {
	s := &ZapSink{}
	if l != nil {
		s.logger = l.WithOptions(
			zap.WithCaller(false),
			zap.WrapCore(func(core zapcore.Core) zapcore.Core {
				return &sinkCore{Core: core, sink: s}
			}),
		)
	}
	return s
}

// SetLevel overrides the logger's threshold. LevelNotSet restores it.
func (s *ZapSink) SetLevel(level Level) {
	zl, ok := level.ZapLevel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold, s.armed = zl, ok
}

func (s *ZapSink) override() (zapcore.Level, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold, s.armed
}

func (s *ZapSink) Log(level Level, message string) {
	zl, ok := level.ZapLevel()
	if !ok || s.logger == nil {
		return
	}
	if ce := s.logger.Check(zl, message); ce != nil {
		ce.Write()
	}
}

// sinkCore applies the sink's threshold in place of the wrapped core's. Write
// goes straight to the wrapped core, which does not check levels again.
type sinkCore struct {
	zapcore.Core
	sink *ZapSink
}

func (c *sinkCore) Enabled(lvl zapcore.Level) bool {
	if threshold, ok := c.sink.override(); ok {
		return lvl >= threshold
	}
	return c.Core.Enabled(lvl)
}

func (c *sinkCore) Level() zapcore.Level {
	if threshold, ok := c.sink.override(); ok {
		return threshold
	}
	return zapcore.LevelOf(c.Core)
}

func (c *sinkCore) With(fields []zapcore.Field) zapcore.Core {
	return &sinkCore{Core: c.Core.With(fields), sink: c.sink}
}

func (c *sinkCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	threshold, ok := c.sink.override()
	if !ok {
		return c.Core.Check(ent, ce)
	}
	if ent.Level >= threshold {
		return ce.AddCore(ent, c)
	}
	return ce
}
