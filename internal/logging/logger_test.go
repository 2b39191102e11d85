package logging

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug allowed at debug", LevelDebug, LevelDebug, true},
		{"info allowed at debug", LevelDebug, LevelInfo, true},
		{"warn allowed at debug", LevelDebug, LevelWarn, true},
		{"error allowed at debug", LevelDebug, LevelError, true},
		{"debug blocked at info", LevelInfo, LevelDebug, false},
		{"info allowed at info", LevelInfo, LevelInfo, true},
		{"debug blocked at warn", LevelWarn, LevelDebug, false},
		{"info blocked at warn", LevelWarn, LevelInfo, false},
		{"warn allowed at warn", LevelWarn, LevelWarn, true},
		{"error allowed at warn", LevelWarn, LevelError, true},
		{"warn blocked at error", LevelError, LevelWarn, false},
		{"error allowed at error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New()
			logger.SetLevel(tt.minLevel)
			logger.SetOutput(log.New(&buf, "", 0))

			switch tt.logLevel {
			case LevelDebug:
				logger.Debug("test message")
			case LevelInfo:
				logger.Info("test message")
			case LevelWarn:
				logger.Warn("test message")
			case LevelError:
				logger.Error("test message")
			}

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String(), "expected log output")
				assert.Contains(t, buf.String(), "test message")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(LevelDebug)
	logger.SetOutput(log.New(&buf, "", 0))

	childLogger := logger.With("iteration", 7)
	childLogger.Warn("something happened")

	output := buf.String()
	assert.Contains(t, output, "WARN: something happened")
	assert.Contains(t, output, "iteration=7")
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(LevelDebug)
	logger.SetOutput(log.New(&buf, "", 0))

	childLogger := logger.WithFields(map[string]interface{}{
		"iteration": 3,
		"task":      "Add-parser",
	})
	childLogger.Error("error occurred")

	output := buf.String()
	assert.Contains(t, output, "ERROR: error occurred")
	assert.Contains(t, output, "iteration=3")
	assert.Contains(t, output, "task=Add-parser")
}

func TestLoggerInlineKeyVals(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(LevelDebug)
	logger.SetOutput(log.New(&buf, "", 0))

	logger.Warn("commit failed", "error", errors.New("hook rejected"), "attempt", 3)

	output := buf.String()
	assert.Contains(t, output, "WARN: commit failed")
	assert.Contains(t, output, "error=\"hook rejected\"")
	assert.Contains(t, output, "attempt=3")
}

func TestLoggerFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(LevelDebug)
	logger.SetOutput(log.New(&buf, "", 0))

	logger.Info("verdict", "verdict", "VERIFIED", "iteration", 2, "duration", "3s")

	output := buf.String()
	durIdx := strings.Index(output, "duration=")
	iterIdx := strings.Index(output, "iteration=")
	verdictIdx := strings.Index(output, "verdict=VERIFIED")
	assert.True(t, durIdx < iterIdx && iterIdx < verdictIdx, "fields should be sorted: %s", output)
}

func TestLoggerChainingPreservesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(LevelDebug)
	logger.SetOutput(log.New(&buf, "", 0))

	runLogger := logger.With("run", "abc123")
	iterLogger := runLogger.With("iteration", 1)
	iterLogger.Info("starting")

	output := buf.String()
	assert.Contains(t, output, "run=abc123")
	assert.Contains(t, output, "iteration=1")
}

func TestLoggerOriginalUnmodified(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(LevelDebug)
	logger.SetOutput(log.New(&buf, "", 0))

	_ = logger.With("run", "abc123")
	logger.Info("original logger")

	output := buf.String()
	assert.NotContains(t, output, "run=abc123")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"simple string", "hello", "hello"},
		{"string with spaces", "hello world", `"hello world"`},
		{"string with newline", "hello\nworld", `"hello\nworld"`},
		{"integer", 42, "42"},
		{"error", errors.New("oops"), `"oops"`},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatValue(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(log.New(&buf, "", 0))
	SetLevel(LevelWarn)

	Debug("debug message")
	assert.Empty(t, buf.String())

	Warn("warn message")
	assert.Contains(t, buf.String(), "WARN: warn message")

	buf.Reset()

	childLogger := With("component", "test")
	childLogger.Error("error message")
	assert.Contains(t, buf.String(), "component=test")
}

func TestSetVerbosity(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		debug   bool
		want    Level
	}{
		{"debug flag wins", true, true, LevelDebug},
		{"debug alone", false, true, LevelDebug},
		{"verbose alone", true, false, LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLevel(LevelWarn)
			SetVerbosity(tt.verbose, tt.debug)
			assert.Equal(t, tt.want, defaultLogger.minLevel)
		})
	}

	t.Run("no flags leaves level alone", func(t *testing.T) {
		SetLevel(LevelWarn)
		SetVerbosity(false, false)
		assert.Equal(t, LevelWarn, defaultLogger.minLevel)
	})
}
