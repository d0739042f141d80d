package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"task-tracker/backend/internal/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Log        LogConfig
	Migrations MigrationsConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	// URL, when set, wins over the individual connection fields.
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	SlowThreshold   time.Duration
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	// Distributed switches to the redis sliding window when redis is up.
	Distributed bool
}

type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	L1TTL     time.Duration
	KeyPrefix string
}

type LogConfig struct {
	Level  string
	Format string
}

type MigrationsConfig struct {
	// Path is a directory of migration files; empty uses the embedded set.
	Path        string
	AutoMigrate bool
	MaxRetries  int
	RetryDelay  time.Duration
}

// LoadConfig reads the environment, after loading ENV_FILE (default .env)
// when it exists. Variables already set in the environment take precedence
// over the file.
func LoadConfig() (*Config, error) {
	envFile := utils.GetEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            utils.GetEnv("SERVER_HOST", "0.0.0.0"),
			Port:            utils.GetEnvAsInt("PORT", 8080),
			Environment:     utils.GetEnv("ENVIRONMENT", "development"),
			ReadTimeout:     utils.GetEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    utils.GetEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     utils.GetEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: utils.GetEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			URL:             utils.GetEnv("DATABASE_URL", ""),
			Host:            utils.GetEnv("DB_HOST", "localhost"),
			Port:            utils.GetEnvAsInt("DB_PORT", 5432),
			User:            utils.GetEnv("DB_USER", "postgres"),
			Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
			Name:            utils.GetEnv("DB_NAME", "tasks"),
			SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    utils.GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    utils.GetEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: utils.GetEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: utils.GetEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			SlowThreshold:   utils.GetEnvAsDuration("DB_SLOW_THRESHOLD", 200*time.Millisecond),
		},
		Redis: RedisConfig{
			Host:         utils.GetEnv("REDIS_HOST", "localhost"),
			Port:         utils.GetEnvAsInt("REDIS_PORT", 6379),
			Password:     utils.GetEnv("REDIS_PASSWORD", ""),
			DB:           utils.GetEnvAsInt("REDIS_DB", 0),
			PoolSize:     utils.GetEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: utils.GetEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:   utils.GetEnvAsInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  utils.GetEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  utils.GetEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: utils.GetEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:        utils.GetEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: utils.GetEnvAsInt("RATE_LIMIT_REQUESTS_PER_MIN", 600),
			BurstSize:      utils.GetEnvAsInt("RATE_LIMIT_BURST", 50),
			Distributed:    utils.GetEnvAsBool("RATE_LIMIT_DISTRIBUTED", false),
		},
		Cache: CacheConfig{
			Enabled:   utils.GetEnvAsBool("CACHE_ENABLED", false),
			TTL:       utils.GetEnvAsDuration("CACHE_TTL", 5*time.Minute),
			L1TTL:     utils.GetEnvAsDuration("CACHE_L1_TTL", time.Minute),
			KeyPrefix: utils.GetEnv("CACHE_KEY_PREFIX", "task-tracker:"),
		},
		Log: LogConfig{
			Level:  utils.GetEnv("LOG_LEVEL", "info"),
			Format: utils.GetEnv("LOG_FORMAT", "json"),
		},
		Migrations: MigrationsConfig{
			Path:        utils.GetEnv("MIGRATIONS_PATH", ""),
			AutoMigrate: utils.GetEnvAsBool("AUTO_MIGRATE", true),
			MaxRetries:  utils.GetEnvAsInt("MIGRATIONS_MAX_RETRIES", 5),
			RetryDelay:  utils.GetEnvAsDuration("MIGRATIONS_RETRY_DELAY", 2*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Database.URL == "" && (c.Database.Port < 1 || c.Database.Port > 65535) {
		errs = append(errs, fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port))
	}
	if c.Database.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.Database.MaxOpenConns))
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, fmt.Errorf("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS, got %d", c.Database.MaxIdleConns))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.BurstSize < 1) {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS_PER_MIN and RATE_LIMIT_BURST must be positive"))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) GetServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) GetRedisAddr() string {
	return net.JoinHostPort(c.Redis.Host, strconv.Itoa(c.Redis.Port))
}

// DSN returns a postgres connection URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
