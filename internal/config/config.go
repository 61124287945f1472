package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultPath = "configs/config.toml"
	EnvPrefix   = "HRCONSOLE_"
)

const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	API struct {
		BaseURL    string        `toml:"base_url"`
		Timeout    time.Duration `toml:"-"`
		StrTimeout string        `toml:"timeout"`
	}
	Cache struct {
		DedupInterval    time.Duration `toml:"-"`
		StrDedupInterval string        `toml:"dedup_interval"`
	}
	Session struct {
		Storage     string
		FilePath    string `toml:"file_path"`
		Secret      string
		RedisPrefix string        `toml:"redis_prefix"`
		TTL         time.Duration `toml:"-"`
		StrTTL      string        `toml:"ttl"`
	}
	Redis struct {
		RedisAddr     string `toml:"redis_addr"`
		RedisPassword string `toml:"redis_password"`
		RedisDB       int    `toml:"redis_db"`
	}
	Gateway struct {
		Host                 string
		AllowedOrigins       []string      `toml:"allowed_origins"`
		ReadTimeout          time.Duration `toml:"-"`
		WriteTimeout         time.Duration `toml:"-"`
		ReadHeaderTimeout    time.Duration `toml:"-"`
		StrReadTimeout       string        `toml:"read_timeout"`
		StrWriteTimeout      string        `toml:"write_timeout"`
		StrReadHeaderTimeout string        `toml:"read_header_timeout"`
	}
	Upload struct {
		MaxSizeMB    int      `toml:"max_size_mb"`
		AllowedTypes []string `toml:"allowed_types"`
	}
	Log struct {
		File  string
		Level string
	}
}

// GetConfig loads DefaultPath.
func GetConfig(logger *slog.Logger) (*Config, error) {
	return Load(DefaultPath, logger)
}

// Load reads the TOML file at path, then applies a .env file (if present)
// and HRCONSOLE_* environment overrides.
func Load(path string, logger *slog.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("Error read config file", slog.String("path", path), slog.String("error", err.Error()))
		return nil, err
	}

	cfg, err := Parse(string(data))
	if err != nil {
		logger.Error("Error decode config file", slog.String("path", path), slog.String("error", err.Error()))
		return nil, err
	}

	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Error loading .env file", slog.String("error", err.Error()))
	}

	cfg.applyEnv()

	if err = cfg.Validate(); err != nil {
		logger.Error("Invalid config", slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Config is loaded", slog.String("api", cfg.API.BaseURL), slog.String("session_storage", cfg.Session.Storage))

	return cfg, nil
}

// Parse decodes TOML and resolves duration strings and defaults. It does
// not look at the environment.
func Parse(data string) (*Config, error) {
	var cfg Config

	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}

	var err error
	if cfg.API.Timeout, err = parseDuration("api.timeout", cfg.API.StrTimeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Cache.DedupInterval, err = parseDuration("cache.dedup_interval", cfg.Cache.StrDedupInterval, 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.Session.TTL, err = parseDuration("session.ttl", cfg.Session.StrTTL, 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Gateway.ReadTimeout, err = parseDuration("gateway.read_timeout", cfg.Gateway.StrReadTimeout, 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Gateway.WriteTimeout, err = parseDuration("gateway.write_timeout", cfg.Gateway.StrWriteTimeout, 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Gateway.ReadHeaderTimeout, err = parseDuration("gateway.read_header_timeout", cfg.Gateway.StrReadHeaderTimeout, 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.Session.Storage == "" {
		cfg.Session.Storage = StorageFile
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = "hrconsole:session:"
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1:8081"
	}
	if cfg.Upload.MaxSizeMB == 0 {
		cfg.Upload.MaxSizeMB = 10
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		cfg.Upload.AllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "hrconsole.log"
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if c.API.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url must be an absolute URL, got %q", ErrInvalidConfig, c.API.BaseURL)
	}

	if c.Cache.DedupInterval <= 0 {
		return fmt.Errorf("%w: cache.dedup_interval must be positive", ErrInvalidConfig)
	}

	switch c.Session.Storage {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if c.Session.FilePath == "" {
			return fmt.Errorf("%w: session.file_path is required for file storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session.storage %q", ErrInvalidConfig, c.Session.Storage)
	}

	if c.Session.Storage == StorageRedis && c.Redis.RedisAddr == "" {
		return fmt.Errorf("%w: redis.redis_addr is required for redis storage", ErrInvalidConfig)
	}

	if c.Upload.MaxSizeMB < 0 {
		return fmt.Errorf("%w: upload.max_size_mb must not be negative", ErrInvalidConfig)
	}

	return nil
}

// LogLevel maps log.level to a slog level; unknown values mean info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}

	return level
}

func (c *Config) applyEnv() {
	setFromEnv(&c.API.BaseURL, "API_URL")
	setFromEnv(&c.Session.Storage, "SESSION_STORAGE")
	setFromEnv(&c.Session.FilePath, "SESSION_FILE")
	setFromEnv(&c.Session.Secret, "SESSION_SECRET")
	setFromEnv(&c.Redis.RedisAddr, "REDIS_ADDR")
	setFromEnv(&c.Redis.RedisPassword, "REDIS_PASSWORD")
	setFromEnv(&c.Gateway.Host, "GATEWAY_HOST")
	setFromEnv(&c.Log.File, "LOG_FILE")
	setFromEnv(&c.Log.Level, "LOG_LEVEL")
}

func setFromEnv(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + name)); v != "" {
		*dst = v
	}
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return d, nil
}
