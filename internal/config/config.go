package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Broadcast BroadcastConfig
	Presence  PresenceConfig
	WebSocket WebSocketConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

var (
	ConfigInstance *Config
	configErr      error
	once           sync.Once
)

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver   string // postgres | mysql
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	URL          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type JWTConfig struct {
	Secret string
}

type BroadcastConfig struct {
	Backend         string // memory | redis
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type PresenceConfig struct {
	OfflineDelay time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins  []string
	SendQueue       int
	MaxMessageBytes int64
	FrameRate       float64
	FrameBurst      int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// LoadConfig reads an optional .env file and the environment once per process.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found, using environment variables")
		}
		ConfigInstance, configErr = Load(viper.New())
	})
	return ConfigInstance, configErr
}

// Load builds a Config from v with defaults applied and validates it.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("NOTIFY_HOST"),
			Port:            v.GetString("NOTIFY_PORT"),
			ReadTimeout:     v.GetDuration("NOTIFY_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("NOTIFY_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("NOTIFY_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("NOTIFY_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DBName:   v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("NOTIFY_JWT_SECRET"),
		},
		Broadcast: BroadcastConfig{
			Backend:         strings.ToLower(v.GetString("BROADCAST_BACKEND")),
			BreakerFailures: v.GetUint32("BROADCAST_BREAKER_FAILURES"),
			BreakerTimeout:  v.GetDuration("BROADCAST_BREAKER_TIMEOUT"),
		},
		Presence: PresenceConfig{
			OfflineDelay: v.GetDuration("PRESENCE_OFFLINE_DELAY"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  splitList(v.GetString("WS_ALLOWED_ORIGINS")),
			SendQueue:       v.GetInt("WS_SEND_QUEUE"),
			MaxMessageBytes: v.GetInt64("WS_MAX_MESSAGE_BYTES"),
			FrameRate:       v.GetFloat64("WS_FRAME_RATE"),
			FrameBurst:      v.GetInt("WS_FRAME_BURST"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("API_RATE_LIMIT"),
			Window:   v.GetDuration("API_RATE_WINDOW"),
		},
		LogLevel: v.GetString("NOTIFY_LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("NOTIFY_PORT", "8080")
	v.SetDefault("NOTIFY_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("NOTIFY_SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_JWT_SECRET", "secret")
	v.SetDefault("NOTIFY_LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "password")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DB", "postgres")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	v.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)

	v.SetDefault("BROADCAST_BACKEND", BackendMemory)
	v.SetDefault("BROADCAST_BREAKER_FAILURES", 5)
	v.SetDefault("BROADCAST_BREAKER_TIMEOUT", 15*time.Second)
	v.SetDefault("PRESENCE_OFFLINE_DELAY", 20*time.Second)

	v.SetDefault("WS_SEND_QUEUE", 256)
	v.SetDefault("WS_MAX_MESSAGE_BYTES", 8192)
	v.SetDefault("WS_FRAME_RATE", 10)
	v.SetDefault("WS_FRAME_BURST", 20)

	v.SetDefault("API_RATE_LIMIT", 100)
	v.SetDefault("API_RATE_WINDOW", time.Minute)
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Broadcast.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown BROADCAST_BACKEND %q", c.Broadcast.Backend))
	}
	switch c.Database.Driver {
	case DriverPostgres:
	case DriverMySQL:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver))
	}
	if c.Presence.OfflineDelay <= 0 {
		errs = append(errs, errors.New("PRESENCE_OFFLINE_DELAY must be positive"))
	}
	if c.WebSocket.SendQueue <= 0 {
		errs = append(errs, errors.New("WS_SEND_QUEUE must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// DSN returns DATABASE_URL when set, else a postgres keyword DSN.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
