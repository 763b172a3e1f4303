package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"taskrelay/backend/config"
	"taskrelay/backend/global"
	"taskrelay/backend/initialize"
	"taskrelay/backend/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		global.Logger.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}
	log := initialize.InitLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := initialize.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build app")
	}
	defer app.Close()

	config.Watch(*configPath, func(c *config.Config) {
		initialize.SetLogLevel(c.Log.Level)
		log.Info().Str("level", c.Log.Level).Msg("config reloaded")
	}, func(err error) {
		log.Warn().Err(err).Msg("config watch")
	})

	srv := server.NewHTTPServer(cfg.Server.Addr(), app.Router, cfg.Server.ShutdownTimeout, log)
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("http server")
		return
	}
	log.Info().Msg("bye")
}
