package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	timestampFieldNameConstant           = "timestamp"
	levelFieldNameConstant               = "level"
	messageFieldNameConstant             = "message"
	loggerFieldNameConstant              = "logger"
	callerFieldNameConstant              = "caller"
	stacktraceFieldNameConstant          = "stacktrace"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported logging encoders.
type LogFormat string

// Supported log formats.
const (
	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
)

var zapLevelByLogLevel = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// LoggerOutputs groups the loggers produced for a command invocation.
type LoggerOutputs struct {
	// DiagnosticLogger records lifecycle events with fields.
	DiagnosticLogger *zap.Logger
	// ConsoleLogger prints bare progress messages. It discards output in structured mode.
	ConsoleLogger *zap.Logger
}

// LoggerFactory builds zap loggers for the command line interface.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLoggerOutputs builds the diagnostic and console loggers writing to standard error.
func (factory *LoggerFactory) CreateLoggerOutputs(level LogLevel, format LogFormat) (LoggerOutputs, error) {
	zapLevel, levelKnown := zapLevelByLogLevel[LogLevel(strings.ToLower(strings.TrimSpace(string(level))))]
	if !levelKnown {
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogLevelTemplateConstant, level)
	}

	errorSink := zapcore.Lock(zapcore.AddSync(os.Stderr))
	atomicLevel := zap.NewAtomicLevelAt(zapLevel)

	switch LogFormat(strings.ToLower(strings.TrimSpace(string(format)))) {
	case LogFormatStructured:
		encoder := zapcore.NewJSONEncoder(structuredEncoderConfig())
		return LoggerOutputs{
			DiagnosticLogger: zap.New(zapcore.NewCore(encoder, errorSink, atomicLevel)),
			ConsoleLogger:    zap.NewNop(),
		}, nil
	case LogFormatConsole:
		diagnosticEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig())
		messageEncoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey: messageFieldNameConstant,
			LineEnding: zapcore.DefaultLineEnding,
		})
		return LoggerOutputs{
			DiagnosticLogger: zap.New(zapcore.NewCore(diagnosticEncoder, errorSink, atomicLevel)),
			ConsoleLogger:    zap.New(zapcore.NewCore(messageEncoder, errorSink, atomicLevel)),
		}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, format)
	}
}

func structuredEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        timestampFieldNameConstant,
		LevelKey:       levelFieldNameConstant,
		NameKey:        loggerFieldNameConstant,
		CallerKey:      callerFieldNameConstant,
		MessageKey:     messageFieldNameConstant,
		StacktraceKey:  stacktraceFieldNameConstant,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := structuredEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return encoderConfig
}
