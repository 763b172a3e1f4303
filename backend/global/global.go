// Package global holds process-wide state set once during startup.
package global

import (
	"taskrelay/backend/config"

	"github.com/rs/zerolog"
)

var (
	Config *config.Config
	// Logger is set up by package initialize.
	Logger = zerolog.Nop()
)
