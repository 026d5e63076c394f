package logger

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Constants
const (
	LogFilePermissions = 0600
	InfoLogLevel       = "info"
)

// TraceLevel is one step below zap's DebugLevel. It carries the SSH engine's
// function level traces.
const TraceLevel = zapcore.DebugLevel - 1

// Global variables
var (
	globalLogger *zap.Logger
	globalLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	loggerMutex  sync.RWMutex
	once         sync.Once

	// Global settings
	GlobalEnableConsoleLogger bool
	GlobalEnableFileLogger    bool
	GlobalEnableBufferLogger  bool
	GlobalLogPath             string = "/tmp/sshkit.log"
	GlobalLogLevel            string = InfoLogLevel
	GlobalInstantSync         bool
	GlobalLoggedBufferSize    int = 8192
)

type Logger struct {
	*zap.Logger
}

// Initialization functions
func InitLoggerOutputs() {
	GlobalEnableConsoleLogger = false
	GlobalEnableFileLogger = true
	GlobalEnableBufferLogger = true
	GlobalLogPath = "/tmp/sshkit.log"
	GlobalLogLevel = InfoLogLevel
	GlobalInstantSync = false

	if viper.IsSet("general.log_path") {
		GlobalLogPath = viper.GetString("general.log_path")
	}
	if viper.IsSet("general.log_level") {
		GlobalLogLevel = viper.GetString("general.log_level")
	}
	if viper.IsSet("general.enable_console_logger") {
		GlobalEnableConsoleLogger = viper.GetBool("general.enable_console_logger")
	}
	if viper.IsSet("general.enable_file_logger") {
		GlobalEnableFileLogger = viper.GetBool("general.enable_file_logger")
	}
	if viper.IsSet("general.enable_buffer_logger") {
		GlobalEnableBufferLogger = viper.GetBool("general.enable_buffer_logger")
	}
}

func InitProduction() {
	once.Do(func() {
		if GlobalLogLevel == "" {
			GlobalLogLevel = InfoLogLevel
		}
		globalLevel.SetLevel(ParseLevel(GlobalLogLevel))

		var cores []zapcore.Core

		if GlobalEnableConsoleLogger {
			cores = append(cores, createConsoleCore(globalLevel))
		}

		if GlobalEnableFileLogger {
			if fileCore, err := createFileCore(globalLevel, "json"); err == nil {
				cores = append(cores, fileCore)
			}
		}

		if GlobalEnableBufferLogger {
			cores = append(cores, createBufferCore(globalLevel))
		}

		core := zapcore.NewTee(cores...)
		globalLogger = zap.New(core, zap.AddCaller()).Named("sshkit")
	})
}

func baseEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    LevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func createConsoleCore(level zapcore.LevelEnabler) zapcore.Core {
	encoderConfig := baseEncoderConfig()
	encoderConfig.EncodeLevel = ColorLevelEncoder
	encoderConfig.EncodeCaller = nil // Don't show caller in console output
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("15:04:05"))
	}

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)
}

func createFileCore(level zapcore.LevelEnabler, format string) (zapcore.Core, error) {
	encoderConfig := baseEncoderConfig()

	logFile, err := os.OpenFile(
		GlobalLogPath,
		os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		LogFilePermissions,
	)
	if err != nil {
		return nil, err
	}
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if format != "json" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	return zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(logFile)),
		level,
	), nil
}

func createBufferCore(level zapcore.LevelEnabler) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(baseEncoderConfig()),
		zapcore.Lock(zapcore.AddSync(bufferWriter{globalLogBuffer})),
		level,
	)
}

func (l *Logger) syncIfNeeded() {
	if GlobalInstantSync {
		_ = l.Sync()
	}
}

func (l *Logger) log(level zapcore.Level, msg string) {
	if l.Logger == nil {
		return
	}
	if ce := l.Logger.Check(level, msg); ce != nil {
		ce.Write()
	}
	l.syncIfNeeded()
}

func (l *Logger) Trace(msg string) {
	l.log(TraceLevel, msg)
}

func (l *Logger) Debug(msg string) {
	l.log(zapcore.DebugLevel, msg)
}

func (l *Logger) Info(msg string) {
	l.log(zapcore.InfoLevel, msg)
}

func (l *Logger) Warn(msg string) {
	l.log(zapcore.WarnLevel, msg)
}

func (l *Logger) Error(msg string) {
	l.log(zapcore.ErrorLevel, msg)
}

// Formatted logging methods
func (l *Logger) Tracef(format string, args ...interface{}) { l.Trace(fmt.Sprintf(format, args...)) }

func (l *Logger) Debugf(
	format string,
	args ...interface{},
) {
	l.Debug(fmt.Sprintf(format, args...))
}
func (l *Logger) Infof(format string, args ...interface{}) { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{}) { l.Warn(fmt.Sprintf(format, args...)) }

func (l *Logger) Errorf(
	format string,
	args ...interface{},
) {
	l.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) ErrorWithFields(msg string, fields ...zap.Field) {
	l.Logger.Error(msg, fields...)
	l.syncIfNeeded()
}

// LevelEncoder renders TraceLevel as "TRACE" and defers to zap otherwise.
func LevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level == TraceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(level, enc)
}

func ColorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if level == TraceLevel {
		enc.AppendString("\x1b[35mTRACE\x1b[0m")
		return
	}
	zapcore.CapitalColorLevelEncoder(level, enc)
}

// LevelName is the severity name a record at level carries.
func LevelName(level zapcore.Level) string {
	if level == TraceLevel {
		return "TRACE"
	}
	return level.CapitalString()
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s]", t.Format("2006-01-02 15:04:05")))
}

// ParseLevel maps a level name to a zap level. Unknown names fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLevel changes the level of the global logger's cores.
func SetLevel(level zapcore.Level) {
	globalLevel.SetLevel(level)
}

// Global functions
func Get() *Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		InitProduction()
	}
	return &Logger{Logger: globalLogger}
}

func SetGlobalLogger(l *Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = l.Logger
}

// Panic handling
func LogPanic(rec interface{}) {
	stack := debug.Stack()
	logger := Get()
	logger.ErrorWithFields("PANIC", zap.Any("recovered", rec), zap.String("stack", string(stack)))
	_ = logger.Sync()
}

func RecoverAndLog(f func()) {
	defer func() {
		if r := recover(); r != nil {
			LogPanic(r)
			panic(r)
		}
	}()
	f()
}

// LogBuffer maintains a circular buffer of log messages
type LogBuffer struct {
	lines []string
	size  int
	mu    sync.RWMutex
}

// NewLogBuffer creates a new log buffer with specified size
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 100 //nolint:mnd
	}
	return &LogBuffer{
		lines: make([]string, 0, size),
		size:  size,
	}
}

var globalLogBuffer = NewLogBuffer(GlobalLoggedBufferSize)

// AddLine adds a line to the buffer, dropping the oldest line when full
func (lb *LogBuffer) AddLine(line string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(lb.lines) >= lb.size {
		lb.lines = lb.lines[1:]
	}
	lb.lines = append(lb.lines, line)
}

// GetLastLines returns the last n lines from the buffer
func (lb *LogBuffer) GetLastLines(n int) []string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if n <= 0 {
		return []string{}
	}

	if n >= len(lb.lines) {
		return append([]string{}, lb.lines...)
	}

	return append([]string{}, lb.lines[len(lb.lines)-n:]...)
}

// GetLastLines gets the last n lines from the buffer core
func GetLastLines(n int) []string {
	return globalLogBuffer.GetLastLines(n)
}

type bufferWriter struct {
	buffer *LogBuffer
}

func (w bufferWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		w.buffer.AddLine(line)
	}
	return len(p), nil
}
