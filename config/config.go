package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Engine EngineConfig `mapstructure:"engine"`
	Cron   CronConfig   `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	HostPassword string        `mapstructure:"host_password"`
}

type EngineConfig struct {
	InboxSize        int           `mapstructure:"inbox_size"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
	ActivityLimit    int           `mapstructure:"activity_limit"`
	PriceTree        string        `mapstructure:"price_tree"`
	StrictInvariants bool          `mapstructure:"strict_invariants"`
	DefaultCountdown time.Duration `mapstructure:"default_countdown"`
	MinTickInterval  time.Duration `mapstructure:"min_tick_interval"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	StatsSpec string `mapstructure:"stats_spec"`
}

// IsDev reports whether the app runs in the development environment.
func (c Config) IsDev() bool {
	return strings.EqualFold(c.App.Env, "dev")
}

// Load reads path (YAML) on top of the defaults; AUCTION_* environment
// variables override both. With envOnly the file is skipped.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "prod")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("auth.jwt_secret", "change-me")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.host_password", "")
	v.SetDefault("engine.inbox_size", 256)
	v.SetDefault("engine.subscriber_buffer", 64)
	v.SetDefault("engine.activity_limit", 5000)
	v.SetDefault("engine.price_tree", "sharded")
	v.SetDefault("engine.default_countdown", "0s")
	v.SetDefault("engine.min_tick_interval", "200ms")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.stats_spec", "@every 1m")

	if !envOnly && path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}
	// 开发环境默认严格校验不变量
	v.SetDefault("engine.strict_invariants", strings.EqualFold(v.GetString("app.env"), "dev"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	// 环境变量里的逗号列表
	if len(cfg.Server.CORSOrigins) == 1 && strings.Contains(cfg.Server.CORSOrigins[0], ",") {
		cfg.Server.CORSOrigins = strings.Split(cfg.Server.CORSOrigins[0], ",")
	}
	return cfg, nil
}
