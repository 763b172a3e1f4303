package config

import (
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	ServerURL      string
	Hostname       string
	User           string
	LogPath        string
	LogLevel       string
	RequestTimeout time.Duration
	PollInterval   int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Load reads the agent config from path. Missing files fall back to defaults;
// hostname and user default to the local machine's.
func Load(path string) AppConfig {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskrelay_agent")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults
	v.SetDefault("agent.server_url", "http://127.0.0.1:8000")
	v.SetDefault("agent.hostname", localHostname())
	v.SetDefault("agent.user", localUser())
	v.SetDefault("agent.log_level", "info")
	v.SetDefault("agent.request_timeout", "30s")
	v.SetDefault("agent.poll_interval", 3)
	v.SetDefault("agent.backoff.initial", "1s")
	v.SetDefault("agent.backoff.max", "1m")
	_ = v.ReadInConfig()

	return AppConfig{
		ServerURL:      strings.TrimRight(v.GetString("agent.server_url"), "/"),
		Hostname:       v.GetString("agent.hostname"),
		User:           v.GetString("agent.user"),
		LogPath:        v.GetString("agent.log_path"),
		LogLevel:       v.GetString("agent.log_level"),
		RequestTimeout: v.GetDuration("agent.request_timeout"),
		PollInterval:   v.GetInt("agent.poll_interval"),
		BackoffInitial: v.GetDuration("agent.backoff.initial"),
		BackoffMax:     v.GetDuration("agent.backoff.max"),
	}
}

func localHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func localUser() string {
	u, err := user.Current()
	if err != nil {
		return os.Getenv("USER")
	}
	return u.Username
}
