// Package logging provides config-driven categorized logging for codelap.
// Logs are written to a single rotated file (.codelap/logs/codelap.log by default)
// with one named zap logger per category. Logging is controlled by debug_mode;
// when it is off nothing is written and every call is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"codelap/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Boot/initialization
	CategorySession  Category = "session"  // Login, logout, token restore
	CategoryProgress Category = "progress" // Step completion, drafts, reset
	CategoryPlans    Category = "plans"    // Saved plan list
	CategoryAPI      Category = "api"      // Backend HTTP calls
	CategoryStorage  Category = "storage"  // Local key/value store
	CategoryExercise Category = "exercise" // Blank editor, submissions
	CategoryUI       Category = "ui"       // TUI pages
)

// LogFileName is the active log file inside the logs directory.
const LogFileName = "codelap.log"

// Logger is a category logger. The zero value is a no-op.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	cfg     config.LoggingConfig
	base    *zap.Logger
	sink    *lumberjack.Logger
	loggers = make(map[Category]*Logger)
	logPath string
)

// Initialize sets up the rotated log file under the workspace.
// Should be called once at startup. A disabled config leaves logging off.
func Initialize(workspace string, lc config.LoggingConfig) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	CloseAll()

	mu.Lock()
	cfg = lc
	if !lc.DebugMode {
		mu.Unlock()
		return nil
	}

	dir := config.ResolvePath(workspace, lc.Dir)
	if lc.Dir == "" {
		dir = filepath.Join(workspace, config.DirName, "logs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		mu.Unlock()
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	logPath = filepath.Join(dir, LogFileName)
	sink = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
	}
	base = zap.New(zapcore.NewCore(newEncoder(lc.JSONFormat()), zapcore.AddSync(sink), parseLevel(lc.Level)))
	mu.Unlock()

	boot := Get(CategoryBoot)
	boot.Info("=== codelap logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log file: %s", logPath)
	boot.Info("Log level: %s", lc.Level)
	if len(lc.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	} else {
		for c, on := range lc.Categories {
			boot.Debug("Category '%s': %v", c, on)
		}
	}

	return nil
}

func newEncoder(jsonFormat bool) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "lvl",
		NameKey:        "cat",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if jsonFormat {
		ec.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	return zapcore.NewConsoleEncoder(ec)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode returns whether logging is enabled at all.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return cfg.DebugMode && base != nil
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return base != nil && cfg.IsCategoryEnabled(string(category))
}

// Path returns the active log file, or "" when logging is off.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return logPath
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	if base == nil {
		return &Logger{category: category}
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Errorf(format, args...)
	}
}

// With returns a logger carrying structured key/value fields on every line.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// WithRequestID returns a request-scoped logger tagged with a correlation ID.
func WithRequestID(category Category, requestID string) *Logger {
	return Get(category).With("req", requestID)
}

// CloseAll flushes and closes the log file (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()

	if base != nil {
		_ = base.Sync()
	}
	if sink != nil {
		_ = sink.Close()
	}
	base = nil
	sink = nil
	logPath = ""
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootError logs an error to the boot category
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

// Session logs to the session category
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// SessionDebug logs debug to the session category
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

// SessionWarn logs a warning to the session category
func SessionWarn(format string, args ...interface{}) { Get(CategorySession).Warn(format, args...) }

// Progress logs to the progress category
func Progress(format string, args ...interface{}) { Get(CategoryProgress).Info(format, args...) }

// ProgressDebug logs debug to the progress category
func ProgressDebug(format string, args ...interface{}) { Get(CategoryProgress).Debug(format, args...) }

// ProgressError logs an error to the progress category
func ProgressError(format string, args ...interface{}) { Get(CategoryProgress).Error(format, args...) }

// Plans logs to the plans category
func Plans(format string, args ...interface{}) { Get(CategoryPlans).Info(format, args...) }

// PlansError logs an error to the plans category
func PlansError(format string, args ...interface{}) { Get(CategoryPlans).Error(format, args...) }

// API logs to the api category
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }

// APIWarn logs a warning to the api category
func APIWarn(format string, args ...interface{}) { Get(CategoryAPI).Warn(format, args...) }

// Storage logs to the storage category
func Storage(format string, args ...interface{}) { Get(CategoryStorage).Info(format, args...) }

// StorageDebug logs debug to the storage category
func StorageDebug(format string, args ...interface{}) { Get(CategoryStorage).Debug(format, args...) }

// StorageError logs an error to the storage category
func StorageError(format string, args ...interface{}) { Get(CategoryStorage).Error(format, args...) }

// Exercise logs to the exercise category
func Exercise(format string, args ...interface{}) { Get(CategoryExercise).Info(format, args...) }

// ExerciseDebug logs debug to the exercise category
func ExerciseDebug(format string, args ...interface{}) { Get(CategoryExercise).Debug(format, args...) }

// ExerciseWarn logs a warning to the exercise category
func ExerciseWarn(format string, args ...interface{}) { Get(CategoryExercise).Warn(format, args...) }

// UI logs to the ui category
func UI(format string, args ...interface{}) { Get(CategoryUI).Info(format, args...) }

// UIDebug logs debug to the ui category
func UIDebug(format string, args ...interface{}) { Get(CategoryUI).Debug(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
