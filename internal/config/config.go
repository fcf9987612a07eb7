// Package config loads the service configuration from YAML, .env and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	QuoteSource QuoteSource `yaml:"quote_source"`
	Store       Store       `yaml:"store"`
	Cache       Cache       `yaml:"cache"`
	Notifier    Notifier    `yaml:"notifier"`
	Indicator   Indicator   `yaml:"indicator"`
	Live        Live        `yaml:"live"`
	Portfolio   Portfolio   `yaml:"portfolio"`
	Schedule    Schedule    `yaml:"schedule"`
	Server      Server      `yaml:"server"`
	Recorder    Recorder    `yaml:"recorder"`
	Logging     Logging     `yaml:"logging"`
}

type QuoteSource struct {
	Source   string        `yaml:"source" default:"eod" validate:"oneof=eod yahoo mock"`
	BaseURL  string        `yaml:"base_url" default:"https://eodhistoricaldata.com/api" validate:"omitempty,url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout" default:"20s" validate:"gt=0"`
}

type Store struct {
	Driver string `yaml:"driver" default:"sqlite" validate:"oneof=sqlite memory"`
	Path   string `yaml:"path" default:"data/trendsentinel.db"`
}

type Cache struct {
	Driver   string        `yaml:"driver" default:"memory" validate:"oneof=memory redis none"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Prefix   string        `yaml:"prefix" default:"trendsentinel"`
	TTL      time.Duration `yaml:"ttl" default:"6h"`
}

type Notifier struct {
	Sink             string        `yaml:"sink" default:"log" validate:"oneof=log telegram webhook"`
	TelegramToken    string        `yaml:"telegram_token" validate:"required_if=Sink telegram"`
	TelegramEndpoint string        `yaml:"telegram_endpoint"`
	Commands         bool          `yaml:"commands"`
	WebhookURL       string        `yaml:"webhook_url" validate:"required_if=Sink webhook"`
	WebhookToken     string        `yaml:"webhook_token"`
	Retries          int           `yaml:"retries" default:"3" validate:"gte=0"`
	RetryDelay       time.Duration `yaml:"retry_delay" default:"2s"`
	Timeout          time.Duration `yaml:"timeout" default:"10s"`
}

// ChannelOverrides replaces single parameters of the channel preset.
type ChannelOverrides struct {
	MAPeriod          *int     `yaml:"ma_period" validate:"omitempty,gte=2"`
	BreakoutPeriod    *int     `yaml:"breakout_period" validate:"omitempty,gte=1"`
	SlopeBias         *float64 `yaml:"slope_bias"`
	ResistanceDamping *float64 `yaml:"resistance_damping" validate:"omitempty,gt=0"`
	StopRatchet       *float64 `yaml:"stop_ratchet" validate:"omitempty,gt=0"`
	FridayStopRatchet *float64 `yaml:"friday_stop_ratchet" validate:"omitempty,gt=0"`
	LongLowerFloor    *float64 `yaml:"long_lower_floor" validate:"omitempty,gt=0"`
}

type Indicator struct {
	BatchLimit  int              `yaml:"batch_limit" default:"400" validate:"gte=1"`
	Preset      string           `yaml:"preset" default:"breakout-10" validate:"oneof=breakout-8 breakout-10"`
	Overrides   ChannelOverrides `yaml:"overrides"`
	DailyYears  int              `yaml:"daily_years" default:"2" validate:"gte=1"`
	WeeklyYears int              `yaml:"weekly_years" default:"5" validate:"gte=1"`
}

type Live struct {
	Staleness   time.Duration `yaml:"staleness" default:"120s" validate:"gt=0"`
	BatchSize   int           `yaml:"batch_size" default:"20" validate:"gte=1"`
	Concurrency int           `yaml:"concurrency" default:"5" validate:"gte=1,lte=64"`
}

type Portfolio struct {
	EquityWeekday int    `yaml:"equity_weekday" default:"5" validate:"gte=0,lte=6"`
	CryptoWeekday int    `yaml:"crypto_weekday" validate:"gte=0,lte=6"`
	RecentDays    int    `yaml:"recent_days" default:"365" validate:"gte=1"`
	MaxDays       int    `yaml:"max_days" default:"1825" validate:"gtefield=RecentDays"`
	Timezone      string `yaml:"timezone" default:"Europe/Paris"`
}

type Schedule struct {
	Enabled              bool   `yaml:"enabled" default:"true"`
	RunOnStart           bool   `yaml:"run_on_start"`
	Timezone             string `yaml:"timezone" default:"Europe/Paris"`
	EquitiesCron         string `yaml:"equities_cron" default:"0 */12 9-23 * * 1-5"`
	CryptoCron           string `yaml:"crypto_cron" default:"0 */20 * * * *"`
	EquitiesRollUp       string `yaml:"equities_rollup" default:"0 45 23 * * 1-5"`
	CryptoRollUp         string `yaml:"crypto_rollup" default:"CRON_TZ=Europe/London 0 15 0 * * *"`
	LiveStart            string `yaml:"live_start" default:"09:00"`
	LiveEnd              string `yaml:"live_end" default:"18:20"`
	IndicatorEnd         string `yaml:"indicator_end" default:"23:00"`
	RemainingEnd         string `yaml:"remaining_end" default:"23:30"`
	CryptoIndicatorStart string `yaml:"crypto_indicator_start" default:"00:10"`
	CryptoIndicatorEnd   string `yaml:"crypto_indicator_end" default:"02:00"`
}

type Server struct {
	Enabled        bool     `yaml:"enabled" default:"true"`
	Addr           string   `yaml:"addr" default:":8080"`
	Token          string   `yaml:"token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Recorder struct {
	Path string `yaml:"path" default:"data/runs.db"`
}

type Logging struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// Load applies defaults, then the YAML file at path when it exists, then
// .env and environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.QuoteSource.Source, "QUOTE_SOURCE")
	setString(&c.QuoteSource.BaseURL, "EOD_BASE_URL")
	setString(&c.QuoteSource.APIToken, "EOD_API_TOKEN")
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.Path, "STORE_PATH")
	setString(&c.Cache.Driver, "CACHE_DRIVER")
	setString(&c.Cache.Addr, "REDIS_ADDR")
	setString(&c.Cache.Password, "REDIS_PASSWORD")
	setString(&c.Notifier.Sink, "NOTIFIER_SINK")
	setString(&c.Notifier.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Notifier.WebhookURL, "WEBHOOK_URL")
	setString(&c.Notifier.WebhookToken, "WEBHOOK_TOKEN")
	setInt(&c.Indicator.BatchLimit, "INDICATOR_BATCH_LIMIT")
	setInt(&c.Live.Concurrency, "LIVE_CONCURRENCY")
	setString(&c.Schedule.Timezone, "TZ_SCHEDULE")
	setBool(&c.Schedule.RunOnStart, "RUN_ON_START")
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Server.Token, "SERVER_TOKEN")
	setString(&c.Recorder.Path, "SQLITE_PATH")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setBool(&c.Logging.Pretty, "LOG_PRETTY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
