package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BookStackConfig holds the remote API settings. URL, TokenID and TokenSecret
// are required; startup fails before any request is attempted when they are
// missing or empty.
type BookStackConfig struct {
	URL            string        `mapstructure:"url" validate:"required,url"`
	TokenID        string        `mapstructure:"token_id" validate:"required"`
	TokenSecret    string        `mapstructure:"token_secret" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	UploadTimeout  time.Duration `mapstructure:"upload_timeout" validate:"gt=0"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	MaxRetries     uint64        `mapstructure:"max_retries"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutDownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CacheConfig struct {
	ListTTL time.Duration `mapstructure:"list_ttl" validate:"gt=0"`
}

type MiscConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	GinMode   string `mapstructure:"gin_mode"`
	Transport string `mapstructure:"transport" validate:"oneof=stdio http"`
}

type Config struct {
	BookStack BookStack `mapstructure:"bookstack"`
	Server    ServerConfig
	Cache     CacheConfig
	Misc      MiscConfig
}

// BookStack is an alias kept so mapstructure section names read naturally.
type BookStack = BookStackConfig

// LoadConfig reads settings from an optional yaml file plus the environment.
// Environment variables use the BOOKSTACK_ prefix (BOOKSTACK_BOOKSTACK_URL
// overrides bookstack.url); the legacy BS_URL / BS_TOKEN_ID / BS_TOKEN_SECRET
// names are also honoured.
func LoadConfig(confPath string) (*Config, error) {
	// .env is optional; real env vars win over its contents
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if confPath != "" {
		v.AddConfigPath(confPath)
	}
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("BOOKSTACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Legacy names used by existing deployments.
	_ = v.BindEnv("bookstack.url", "BS_URL")
	_ = v.BindEnv("bookstack.token_id", "BS_TOKEN_ID")
	_ = v.BindEnv("bookstack.token_secret", "BS_TOKEN_SECRET")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		// No config file is fine: defaults and env vars cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode configuration: %w", err)
	}

	cfg.BookStack.URL = strings.TrimRight(strings.TrimSpace(cfg.BookStack.URL), "/")
	cfg.BookStack.TokenID = strings.TrimSpace(cfg.BookStack.TokenID)
	cfg.BookStack.TokenSecret = strings.TrimSpace(cfg.BookStack.TokenSecret)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bookstack.request_timeout", 60*time.Second)
	v.SetDefault("bookstack.upload_timeout", 120*time.Second)
	v.SetDefault("bookstack.fetch_timeout", 30*time.Second)
	v.SetDefault("bookstack.max_retries", 3)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("cache.list_ttl", 30*time.Second)

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.gin_mode", "release")
	v.SetDefault("misc.transport", "stdio")
}

// ConfigFilePath returns the resolved config file, or "" when running from
// defaults and env only. Used by the watcher.
func ConfigFilePath(confPath string) string {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if confPath != "" {
		v.AddConfigPath(confPath)
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}
