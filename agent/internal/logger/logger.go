// Package logger owns the agent's process logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// L writes human-readable lines to stdout until Init runs.
var L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

// Init rebuilds L at level. With a path, JSON lines are also appended there.
// An unknown level falls back to info.
func Init(path, level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	var openErr error
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			openErr = err
		} else {
			out = zerolog.MultiLevelWriter(out, f)
		}
	}
	L = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return openErr
}
