package config

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Services ServicesConfig `mapstructure:"services"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	BaseCurrency string `mapstructure:"base_currency"`
}

// DatabaseConfig configures the MySQL connection.
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig configures the cache/event-bus connection.
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	EventChannel string `mapstructure:"event_channel"`
}

// CacheConfig configures the balance cache.
type CacheConfig struct {
	BalanceTTLSeconds int           `mapstructure:"balance_ttl_seconds"`
	BalanceTTL        time.Duration `mapstructure:"-"`
}

// ServicesConfig configures the external HTTP dependencies.
type ServicesConfig struct {
	RatesBaseURL   string        `mapstructure:"rates_base_url"`
	GroupsBaseURL  string        `mapstructure:"groups_base_url"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	Timeout        time.Duration `mapstructure:"-"`
}

// BreakerConfig configures the membership circuit breaker.
type BreakerConfig struct {
	FailureThreshold float64 `mapstructure:"failure_threshold"`
	WindowSize       int     `mapstructure:"window_size"`
	MinSamples       int     `mapstructure:"min_samples"`
	CooldownSeconds  int     `mapstructure:"cooldown_seconds"`
}

// LimitsConfig configures plan quotas.
type LimitsConfig struct {
	FreeMaxExpensesPerGroup int `mapstructure:"free_max_expenses_per_group"`
}

// AuthConfig configures service-to-service tokens for /internal routes.
type AuthConfig struct {
	InternalSecret string `mapstructure:"internal_secret"`
}

var (
	// GlobalConfig is the loaded configuration instance.
	GlobalConfig *Config
)

// LoadConfig loads configuration with priority:
// external config file > embedded defaults, plus EXPENSES_* env overrides.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("read embedded defaults: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("warning: cannot read config file %s: %v", configPath, err)
		}
	} else {
		external := viper.New()
		external.SetConfigName("config")
		external.SetConfigType("yaml")
		external.AddConfigPath(".")
		external.AddConfigPath("./config")
		external.AddConfigPath("/etc/expenses-service")

		if err := external.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(external.AllSettings()); err != nil {
				log.Printf("warning: merge external config: %v", err)
			} else {
				log.Printf("merged external config: %s", external.ConfigFileUsed())
			}
		}
	}

	v.SetEnvPrefix("EXPENSES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Cache.BalanceTTLSeconds <= 0 {
		cfg.Cache.BalanceTTLSeconds = 60
	}
	cfg.Cache.BalanceTTL = time.Duration(cfg.Cache.BalanceTTLSeconds) * time.Second

	if cfg.Services.TimeoutSeconds <= 0 {
		cfg.Services.TimeoutSeconds = 3
	}
	cfg.Services.Timeout = time.Duration(cfg.Services.TimeoutSeconds) * time.Second

	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker.FailureThreshold = 0.5
	}
	if cfg.Breaker.WindowSize <= 0 {
		cfg.Breaker.WindowSize = 10
	}
	if cfg.Breaker.MinSamples <= 0 {
		cfg.Breaker.MinSamples = 4
	}
	if cfg.Breaker.CooldownSeconds <= 0 {
		cfg.Breaker.CooldownSeconds = 10
	}
	if cfg.Limits.FreeMaxExpensesPerGroup <= 0 {
		cfg.Limits.FreeMaxExpensesPerGroup = 50
	}
	if cfg.Server.BaseCurrency == "" {
		cfg.Server.BaseCurrency = "EUR"
	}

	GlobalConfig = &cfg

	return &cfg, nil
}

// GetConfig returns the global configuration.
func GetConfig() *Config {
	if GlobalConfig == nil {
		panic("config not initialized, call LoadConfig first")
	}
	return GlobalConfig
}

// PrintConfig logs the effective configuration, hiding secrets.
func PrintConfig() {
	if GlobalConfig == nil {
		return
	}
	log.Printf("configuration:")
	log.Printf("  server: %s (mode: %s, base currency: %s)",
		GlobalConfig.Server.Port, GlobalConfig.Server.Mode, GlobalConfig.Server.BaseCurrency)
	log.Printf("  database: %s@%s:%s/%s",
		GlobalConfig.Database.Username,
		GlobalConfig.Database.Host,
		GlobalConfig.Database.Port,
		GlobalConfig.Database.DBName)
	log.Printf("  redis: %s (db %d, channel %q)",
		GlobalConfig.Redis.Addr, GlobalConfig.Redis.DB, GlobalConfig.Redis.EventChannel)
	log.Printf("  balance cache TTL: %s", GlobalConfig.Cache.BalanceTTL)
}

// SafeErrorMessage returns err.Error() in debug mode and the fallback
// message in release mode, so internals never leak to clients in production.
func SafeErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if GlobalConfig != nil && GlobalConfig.Server.Mode == "release" {
		return fallback
	}
	return err.Error()
}
