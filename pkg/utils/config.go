package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "ANIMERANKER_"
	ConfigPathEnv = "ANIMERANKER_CONFIG"
)

type Config struct {
	Server ServerConfig `koanf:"server"`
	Jikan  JikanConfig  `koanf:"jikan"`
	Store  StoreConfig  `koanf:"store"`
	Auth   AuthConfig   `koanf:"auth"`
	Log    LogConfig    `koanf:"log"`
}

type ServerConfig struct {
	HTTPAddr        string        `koanf:"http_addr" validate:"required"`
	GRPCAddr        string        `koanf:"grpc_addr"` // empty disables gRPC
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	TrustedProxies  []string      `koanf:"trusted_proxies"`
}

type JikanConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	Rate     float64       `koanf:"rate" validate:"gt=0"`
	Burst    int           `koanf:"burst" validate:"gte=1"`
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	// top-list pages preloaded at startup, 0 disables
	WarmupPages int `koanf:"warmup_pages" validate:"gte=0,lte=20"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=memory sqlite"`
	DSN    string `koanf:"dsn" validate:"required_if=Driver sqlite"`
}

type AuthConfig struct {
	JWTSecret   string        `koanf:"jwt_secret" validate:"required,min=8"`
	JWTIssuer   string        `koanf:"jwt_issuer" validate:"required"`
	JWTDuration time.Duration `koanf:"jwt_ttl" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled off"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

// DefaultConfig is the base layer; file and env values override it.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: 10 * time.Second,
			TrustedProxies:  []string{},
		},
		Jikan: JikanConfig{
			BaseURL:     "https://api.jikan.moe/v4",
			Timeout:     10 * time.Second,
			Rate:        3,
			Burst:       3,
			CacheTTL:    10 * time.Minute,
			WarmupPages: 1,
		},
		Store: StoreConfig{
			Driver: "memory",
			DSN:    "file:animeranker?mode=memory&cache=shared",
		},
		Auth: AuthConfig{
			// dev default (change for demo / production)
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "animeranker",
			JWTDuration: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// env var (without prefix, lower-cased) -> koanf path
var envKeys = map[string]string{
	"http_addr":        "server.http_addr",
	"grpc_addr":        "server.grpc_addr",
	"shutdown_timeout": "server.shutdown_timeout",
	"trusted_proxies":  "server.trusted_proxies",

	"jikan_base_url":  "jikan.base_url",
	"jikan_timeout":   "jikan.timeout",
	"jikan_rate":      "jikan.rate",
	"jikan_burst":     "jikan.burst",
	"jikan_cache_ttl": "jikan.cache_ttl",
	"jikan_warmup":    "jikan.warmup_pages",

	"store_driver": "store.driver",
	"store_dsn":    "store.dsn",

	"jwt_secret": "auth.jwt_secret",
	"jwt_issuer": "auth.jwt_issuer",
	"jwt_ttl":    "auth.jwt_ttl",

	"log_level":  "log.level",
	"log_format": "log.format",
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	// unknown variables are dropped
	return envKeys[key]
}

// LoadConfig layers defaults, the optional YAML file named by
// ANIMERANKER_CONFIG and ANIMERANKER_* environment variables, then validates.
func LoadConfig() (Config, error) {
	return loadConfig(os.Getenv(ConfigPathEnv))
}

func loadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	// comma separated lists from env
	if raw, ok := k.Get("server.trusted_proxies").(string); ok {
		var proxies []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				proxies = append(proxies, p)
			}
		}
		if err := k.Set("server.trusted_proxies", proxies); err != nil {
			return Config{}, fmt.Errorf("set trusted proxies: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
