package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"taskrelay/agent/internal/backoff"
	"taskrelay/agent/internal/command"
	"taskrelay/agent/internal/config"
	"taskrelay/agent/internal/logger"
	"taskrelay/agent/internal/poller"
	"taskrelay/agent/internal/protocolclient"
	"taskrelay/agent/internal/state"

	"github.com/spf13/afero"
)

func main() {
	cfgPath := flag.String("config", "config/agent.yaml", "Path to configuration file")
	server := flag.String("server", "", "Server base URL, overrides the config file")
	flag.Parse()

	cfg := config.Load(*cfgPath)
	if *server != "" {
		cfg.ServerURL = *server
	}
	if err := logger.Init(cfg.LogPath, cfg.LogLevel); err != nil {
		logger.L.Error().Err(err).Str("path", cfg.LogPath).Msg("cannot open log file, logging to stdout")
	}
	log := logger.L

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := state.New(cfg.PollInterval)
	commands := command.NewRegistry(log)
	client := protocolclient.New(cfg.ServerURL, cfg.RequestTimeout)
	command.RegisterBuiltins(commands, command.Env{State: st, Fs: afero.NewOsFs(), Transfer: client})
	p := poller.New(client, commands, st, backoff.New(cfg.BackoffInitial, cfg.BackoffMax, 2), log)

	log.Info().Str("server", cfg.ServerURL).Str("hostname", cfg.Hostname).Str("user", cfg.User).Msg("agent starting")
	if err := p.Join(ctx, cfg.Hostname, cfg.User); err != nil {
		log.Error().Err(err).Msg("could not join server")
		return
	}
	if err := p.Run(ctx); err != nil {
		if errors.Is(err, protocolclient.ErrUnknownAgent) {
			log.Warn().Msg("server dropped this agent, exiting")
			return
		}
		log.Error().Err(err).Msg("poll loop stopped")
		return
	}
	log.Info().Msg("agent terminated")
}
