package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"sprintboard/internal/config"
)

// New builds the process logger: console output (pretty when attached to a
// terminal in dev), plus an optional rotating file sink when LOGS_FOLDER is set.
func New(cfg config.Config) zerolog.Logger {
	var console io.Writer = os.Stdout
	if cfg.AppEnv == "dev" {
		isTerminal := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: !isTerminal}
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	w := console
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   filepath.Join(cfg.LogDir, "sprintboard.log"),
				MaxSize:    16, // megabytes
				MaxBackups: 8,
				MaxAge:     90, // days
				Compress:   true,
			}
			w = zerolog.MultiLevelWriter(console, fileWriter)
		}
	}

	logger := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
