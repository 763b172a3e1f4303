package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Server struct {
	Host            string
	Port            int
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

type DB struct {
	Driver string
	Path   string
	Host   string
	Port   int
	User   string
	Pass   string
	Name   string
}

type JWT struct {
	Secret string
	Issuer string
	ExpMin int
}

type Admin struct {
	Username string
	Password string
}

type Agent struct {
	OnlineThreshold     time.Duration
	TerminateGrace      time.Duration
	DefaultPollInterval int
	IDMin               int
	IDMax               int
	IDAttempts          int
}

type Storage struct {
	UploadDir   string
	MaxFileSize int64
}

type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

type Log struct {
	Level  string
	Format string
}

type Config struct {
	Server  Server
	DB      DB
	JWT     JWT
	Admin   Admin
	Agent   Agent
	Storage Storage
	Redis   Redis
	Log     Log
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "taskrelay.db")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", 3306)
	v.SetDefault("db.user", "root")
	v.SetDefault("db.pass", "")
	v.SetDefault("db.name", "taskrelay")
	v.SetDefault("jwt.issuer", "taskrelay")
	v.SetDefault("jwt.exp_min", 60)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "admin123")
	v.SetDefault("agent.online_threshold", "15s")
	v.SetDefault("agent.terminate_grace", "3s")
	v.SetDefault("agent.default_poll_interval", 3)
	v.SetDefault("agent.id_min", 100000)
	v.SetDefault("agent.id_max", 999999)
	v.SetDefault("agent.id_attempts", 100)
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.max_file_size", 100*1024*1024)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.channel", "taskrelay:events")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	return v
}

// Load reads the YAML file at path. A missing file is not an error; every
// key has a default.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		// an explicit config path that does not exist surfaces as a PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: Server{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			CORSOrigins:     v.GetStringSlice("server.cors_origins"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		DB: DB{
			Driver: strings.ToLower(v.GetString("db.driver")),
			Path:   v.GetString("db.path"),
			Host:   v.GetString("db.host"),
			Port:   v.GetInt("db.port"),
			User:   v.GetString("db.user"),
			Pass:   v.GetString("db.pass"),
			Name:   v.GetString("db.name"),
		},
		JWT: JWT{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
			ExpMin: v.GetInt("jwt.exp_min"),
		},
		Admin: Admin{
			Username: v.GetString("admin.username"),
			Password: v.GetString("admin.password"),
		},
		Agent: Agent{
			OnlineThreshold:     v.GetDuration("agent.online_threshold"),
			TerminateGrace:      v.GetDuration("agent.terminate_grace"),
			DefaultPollInterval: v.GetInt("agent.default_poll_interval"),
			IDMin:               v.GetInt("agent.id_min"),
			IDMax:               v.GetInt("agent.id_max"),
			IDAttempts:          v.GetInt("agent.id_attempts"),
		},
		Storage: Storage{
			UploadDir:   v.GetString("storage.upload_dir"),
			MaxFileSize: v.GetInt64("storage.max_file_size"),
		},
		Redis: Redis{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "dev-secret"
	}
	if cfg.JWT.ExpMin <= 0 {
		cfg.JWT.ExpMin = 60
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	if c.Agent.IDMin <= 0 || c.Agent.IDMax < c.Agent.IDMin {
		return fmt.Errorf("config: invalid agent id range [%d, %d]", c.Agent.IDMin, c.Agent.IDMax)
	}
	if c.Agent.DefaultPollInterval < 1 || c.Agent.DefaultPollInterval > 60 {
		return fmt.Errorf("config: agent.default_poll_interval must be between 1 and 60")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("config: storage.max_file_size must be positive")
	}
	return nil
}

// Watch re-reads path whenever it changes and hands the new config to fn.
// Invalid edits are reported through onErr and otherwise ignored.
func Watch(path string, fn func(*Config), onErr func(error)) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		onErr(fmt.Errorf("watch config: %w", err))
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := fromViper(v)
		if err != nil {
			onErr(err)
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
}

func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }
