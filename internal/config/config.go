package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	API        APIConfig
	Poll       PollConfig
	Research   ResearchConfig
	Store      StoreConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	DevBackend DevBackendConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	LogFile  string
}

// APIConfig points at the research backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PollConfig struct {
	Interval time.Duration
}

type ResearchConfig struct {
	ModelPreference string
}

// StoreConfig selects where the last started job id is kept.
type StoreConfig struct {
	Driver string // "file", "redis" or "memory"
	Path   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	StartPerHour int
}

type DevBackendConfig struct {
	Port        string
	StageDelay  time.Duration
	Concurrency int
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	readSecret("REDIS_PASSWORD")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_file", "LOG_FILE")
	_ = v.BindEnv("api.base_url", "API_URL", "NEXT_PUBLIC_API_URL")
	_ = v.BindEnv("api.timeout", "API_TIMEOUT")
	_ = v.BindEnv("poll.interval", "POLL_INTERVAL")
	_ = v.BindEnv("research.model_preference", "MODEL_PREFERENCE")
	_ = v.BindEnv("store.driver", "STORE_DRIVER")
	_ = v.BindEnv("store.path", "STORE_PATH")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("ratelimit.start_per_hour", "RATELIMIT_START_PER_HOUR")
	_ = v.BindEnv("devbackend.port", "DEVBACKEND_PORT")
	_ = v.BindEnv("devbackend.stage_delay", "DEVBACKEND_STAGE_DELAY")
	_ = v.BindEnv("devbackend.concurrency", "DEVBACKEND_CONCURRENCY")

	// Defaults
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_file", "")
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 60*time.Second)
	v.SetDefault("poll.interval", 5*time.Second)
	v.SetDefault("research.model_preference", "gemini-1.5-flash")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.start_per_hour", 20)
	v.SetDefault("devbackend.port", "8000")
	v.SetDefault("devbackend.stage_delay", 2*time.Second)
	v.SetDefault("devbackend.concurrency", 4)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
			LogFile:  v.GetString("server.log_file"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.base_url"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Poll: PollConfig{
			Interval: v.GetDuration("poll.interval"),
		},
		Research: ResearchConfig{
			ModelPreference: v.GetString("research.model_preference"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store.driver")),
			Path:   v.GetString("store.path"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			StartPerHour: v.GetInt("ratelimit.start_per_hour"),
		},
		DevBackend: DevBackendConfig{
			Port:        v.GetString("devbackend.port"),
			StageDelay:  v.GetDuration("devbackend.stage_delay"),
			Concurrency: v.GetInt("devbackend.concurrency"),
		},
	}

	return cfg, nil
}
