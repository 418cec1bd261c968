// Package logger is the process-wide diagnostic log. It is separate from
// the run log the operator sees; lines here are for debugging a device
// session after the fact.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	globalLogger *log.Logger
	logFile      *os.File
	verbose      bool
	mu           sync.Mutex
)

// Init opens (appending) the log file at logPath. Debug lines are written
// only when debug is true.
func Init(logPath string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	verbose = debug
	globalLogger = log.New(f, "", log.Ltime|log.Lmicroseconds)
	return nil
}

// SetOutput sends log lines to w instead of a file.
func SetOutput(w io.Writer, debug bool) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	verbose = debug
	globalLogger = log.New(w, "", log.Ltime|log.Lmicroseconds)
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = nil
}

func printf(level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.Printf("["+level+"] "+format, v...)
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	printf("INFO", format, v...)
}

// Debug logs a debug message when verbose logging is on.
func Debug(format string, v ...interface{}) {
	mu.Lock()
	on := verbose
	mu.Unlock()
	if on {
		printf("DEBUG", format, v...)
	}
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	printf("ERROR", format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	printf("WARN", format, v...)
}

// GetWriter returns the underlying file, or io.Discard before Init.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
