package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// LogWriter receives application, gin and gorm log output.
var LogWriter io.Writer = os.Stdout

// InitLogging appends the standard logger to s.LogFile. Outside production
// every line is mirrored to stdout. Logging stays on stdout when the file
// cannot be opened.
func InitLogging(s Settings) (*os.File, io.Writer) {
	LogWriter = os.Stdout
	log.SetOutput(LogWriter)
	if s.LogFile == "" {
		return nil, LogWriter
	}

	if err := os.MkdirAll(filepath.Dir(s.LogFile), 0o755); err != nil {
		log.Printf("Warning: failed to create log directory for %s: %v", s.LogFile, err)
	}

	logFile, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("Warning: failed to open log file %s, logging to stdout: %v", s.LogFile, err)
		return nil, LogWriter
	}

	if s.IsProduction() {
		LogWriter = logFile
	} else {
		LogWriter = io.MultiWriter(os.Stdout, logFile)
	}
	log.SetOutput(LogWriter)
	return logFile, LogWriter
}
