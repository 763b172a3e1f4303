package main

import (
	"flag"
	"os"
	"time"

	"taskrelay/cmd/console/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:8000", "Server base URL")
	timeout := flag.Duration("timeout", 15*time.Second, "HTTP request timeout")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	p := tea.NewProgram(ui.NewRootModel(*server, *timeout), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal().Err(err).Msg("console exited")
	}
}
