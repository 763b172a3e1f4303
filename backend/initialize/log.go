package initialize

import (
	"io"
	"os"
	"strings"

	"taskrelay/backend/config"
	"taskrelay/backend/global"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	// basic zerolog setup: console writer to stdout until config is loaded
	cw := zerolog.ConsoleWriter{Out: os.Stdout}
	global.Logger = log.Output(cw)
}

// InitLogger configures the process logger from cfg and returns it.
func InitLogger(cfg config.Log, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	var logger zerolog.Logger
	if strings.EqualFold(cfg.Format, "json") {
		logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		logger = log.Output(zerolog.ConsoleWriter{Out: out})
	}
	SetLogLevel(cfg.Level)
	global.Logger = logger
	return logger
}

// SetLogLevel applies level globally; unknown levels fall back to info.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
