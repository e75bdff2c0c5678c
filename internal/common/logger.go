// Package common holds process-wide plumbing shared by the CLI and
// the MCP server. The logger is a singleton so library packages can
// log without threading a logger through every constructor.
package common

import (
	"io"
	"os"
	"sync"

	"github.com/phuslu/log"

	"github.com/bad33ndj3/docdex/internal/config"
)

var (
	globalLogger *log.Logger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger. If SetupLogger has not run yet,
// a stderr console logger at info level is installed as a fallback.
func GetLogger() *log.Logger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = &log.Logger{
			Level:  log.InfoLevel,
			Writer: &log.ConsoleWriter{Writer: os.Stderr},
		}
	}
	return globalLogger
}

// InitLogger stores the provided logger as the global instance.
func InitLogger(l *log.Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = l
}

// SetupLogger configures the global logger from config. When a file is
// configured, console output is skipped entirely - required for the
// MCP stdio transport, which owns stdout.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := &log.Logger{
		Level: log.ParseLevel(cfg.Logging.Level),
	}

	if cfg.Logging.File != "" {
		logger.Writer = &log.FileWriter{
			Filename:   cfg.Logging.File,
			MaxSize:    100 << 20,
			MaxBackups: 3,
		}
	} else {
		logger.Writer = &log.ConsoleWriter{Writer: os.Stderr}
	}

	InitLogger(logger)
	return logger
}

// QuietLogger returns a logger that discards everything. Used by tests
// and by commands that must keep stdout/stderr clean.
func QuietLogger() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: log.IOWriter{Writer: io.Discard}}
}
