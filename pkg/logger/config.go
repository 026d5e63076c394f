package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the configuration for the logger
type Config struct {
	Level         string `yaml:"level"          json:"level"          mapstructure:"level"`
	FilePath      string `yaml:"file_path"      json:"file_path"      mapstructure:"file_path"`
	Format        string `yaml:"format"         json:"format"         mapstructure:"format"`
	WithTrace     bool   `yaml:"with_trace"     json:"with_trace"     mapstructure:"with_trace"`
	EnableConsole bool   `yaml:"enable_console" json:"enable_console" mapstructure:"enable_console"`
	EnableBuffer  bool   `yaml:"enable_buffer"  json:"enable_buffer"  mapstructure:"enable_buffer"`
	BufferSize    int    `yaml:"buffer_size"    json:"buffer_size"    mapstructure:"buffer_size"`
	InstantSync   bool   `yaml:"instant_sync"   json:"instant_sync"   mapstructure:"instant_sync"`
}

// Initialize sets up the global logger with the given configuration
func Initialize(config Config) error {
	GlobalEnableConsoleLogger = config.EnableConsole
	GlobalEnableFileLogger = config.FilePath != ""
	GlobalEnableBufferLogger = config.EnableBuffer
	GlobalInstantSync = config.InstantSync

	if config.BufferSize > 0 {
		GlobalLoggedBufferSize = config.BufferSize
		globalLogBuffer = NewLogBuffer(config.BufferSize)
	}

	if config.FilePath != "" {
		GlobalLogPath = config.FilePath
	}

	logLevel := config.Level
	if logLevel == "" {
		logLevel = InfoLogLevel
	}
	GlobalLogLevel = logLevel
	globalLevel.SetLevel(ParseLevel(logLevel))

	var cores []zapcore.Core

	if config.EnableConsole {
		cores = append(cores, createConsoleCore(globalLevel))
	}

	if config.FilePath != "" {
		fileCore, err := createFileCore(globalLevel, config.Format)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, fileCore)
	}

	if config.EnableBuffer {
		cores = append(cores, createBufferCore(globalLevel))
	}

	opts := []zap.Option{zap.AddCaller()}
	if config.WithTrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), opts...).Named("sshkit")
	SetGlobalLogger(&Logger{Logger: logger})

	return nil
}
