// Package logger configures the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `yaml:"level"`  // trace, debug, info, warn, error
	Format     string `yaml:"format"` // console or json
	TimeFormat string `yaml:"time_format,omitempty"`
	Output     string `yaml:"output"` // stdout, stderr, or a file path
}

// DefaultConfig logs info and above to stderr in console format, leaving
// stdout to command output.
func DefaultConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     "stderr",
	}
}

var (
	fileMu  sync.Mutex
	logFile *os.File
)

// Setup initializes the global logger. A log file opened by an earlier Setup
// is closed once the new output is in place.
func Setup(cfg LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	var (
		out io.Writer
		f   *os.File
	)
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err = os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}

	fileMu.Lock()
	defer fileMu.Unlock()
	log.Logger = New(out, cfg)
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}
	prev := logFile
	logFile = f
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Close closes the log file opened by Setup, if any, and sends the global
// logger back to stderr.
func Close() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if logFile == nil {
		return nil
	}
	log.Logger = log.Logger.Output(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

// New builds a logger writing to w in the configured format. It does not
// touch global state.
func New(w io.Writer, cfg LogConfig) zerolog.Logger {
	if strings.ToLower(cfg.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: cfg.TimeFormat}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// WithComponent returns the global logger tagged with a component field.
func WithComponent(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
