package initialize

import (
	"context"
	"fmt"
	"net/http"

	"taskrelay/backend/app/controllers"
	"taskrelay/backend/app/db"
	"taskrelay/backend/app/events"
	jwtutil "taskrelay/backend/app/jwt"
	"taskrelay/backend/app/middleware"
	"taskrelay/backend/app/repo"
	"taskrelay/backend/app/services"
	"taskrelay/backend/app/session"
	"taskrelay/backend/app/storage"
	"taskrelay/backend/config"
	"taskrelay/backend/global"
	"taskrelay/backend/router"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type App struct {
	Cfg      *config.Config
	DB       *gorm.DB
	Router   http.Handler
	Registry *session.Registry
	Agents   *services.AgentService
	Files    *services.FileService
	Users    *services.UserService
	Events   events.Publisher
}

// Close flushes and releases the event publisher, then the database handle.
func (a *App) Close() error {
	if a.Events != nil {
		_ = a.Events.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}

func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	global.Config = cfg

	gdb, err := db.Open(db.Config{
		Driver: cfg.DB.Driver, Path: cfg.DB.Path,
		Host: cfg.DB.Host, Port: cfg.DB.Port, User: cfg.DB.User, Password: cfg.DB.Pass, DBName: cfg.DB.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	userSvc := services.NewUserService(repo.NewUserRepository(gdb))
	if err := userSvc.EnsureAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Warn().Err(err).Str("username", cfg.Admin.Username).Msg("ensure admin account")
	}

	pub := events.NewAsync(newPublisher(ctx, cfg.Redis, log), log, events.DefaultAsyncBuffer, events.DefaultAsyncTimeout)

	reg := session.NewRegistry(
		session.WithIDRange(cfg.Agent.IDMin, cfg.Agent.IDMax),
		session.WithMaxAttempts(cfg.Agent.IDAttempts),
		session.WithDefaultPollInterval(cfg.Agent.DefaultPollInterval),
	)
	store := storage.NewOS(cfg.Storage.UploadDir, cfg.Storage.MaxFileSize)
	agentSvc := services.NewAgentService(reg, store, pub, log, services.AgentOptions{
		OnlineThreshold: cfg.Agent.OnlineThreshold,
		TerminateGrace:  cfg.Agent.TerminateGrace,
	})
	fileSvc := services.NewFileService(reg, store, pub, log)

	signer := &jwtutil.Signer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, ExpMin: cfg.JWT.ExpMin, Revoked: jwtutil.NewDenylist()}
	mw := &middleware.Auth{Signer: signer}

	mux := router.NewRouter(router.Controllers{
		Health:    controllers.NewHealthController(agentSvc),
		Auth:      controllers.NewAuthController(userSvc, signer, log),
		Admin:     controllers.NewAdminController(userSvc),
		AgentComm: controllers.NewAgentCommController(agentSvc, fileSvc),
		Agents:    controllers.NewAgentController(agentSvc),
		Commands:  controllers.NewCommandController(agentSvc),
		Files:     controllers.NewFileController(fileSvc),
	}, mw)

	var h http.Handler = mux
	h = middleware.CORS(cfg.Server.CORSOrigins, h)
	h = middleware.Logging(log, h)

	return &App{
		Cfg: cfg, DB: gdb, Router: h, Registry: reg,
		Agents: agentSvc, Files: fileSvc, Users: userSvc, Events: pub,
	}, nil
}

// newPublisher falls back to logging events when Redis is disabled or unreachable.
func newPublisher(ctx context.Context, cfg config.Redis, log zerolog.Logger) events.Publisher {
	if !cfg.Enabled {
		return events.NewLogPublisher(log)
	}
	pub, err := events.NewRedisPublisher(ctx, events.RedisConfig{
		Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB, Channel: cfg.Channel,
	}, log)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, logging events instead")
		return events.NewLogPublisher(log)
	}
	return pub
}
