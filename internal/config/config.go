// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // reference timezone must resolve on minimal images

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token       string        `yaml:"token" env:"BOT_TOKEN"`
	APIEndpoint string        `yaml:"api_endpoint" env:"BOT_API_ENDPOINT"` // format string with token and method, tgbotapi style
	Timeout     time.Duration `yaml:"timeout" env:"BOT_TIMEOUT"`
	RatePerSec  float64       `yaml:"rate_per_sec"` // outbound messages per second
	Burst       int           `yaml:"burst"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                // json|console
	Sampling bool   `yaml:"sampling"`              // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"` // apply embedded migrations on start
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"` // empty disables caching and job locks
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type LedgerConfig struct {
	Endpoint string        `yaml:"endpoint" env:"TRON_API_ENDPOINT"`
	APIKey   string        `yaml:"api_key" env:"TRON_API_KEY"`
	Wallet   string        `yaml:"wallet" env:"TRON_WALLET"`
	Timeout  time.Duration `yaml:"timeout"`
}

type NotifierConfig struct {
	ExplorerURL   string `yaml:"explorer_url"` // transaction link prefix
	CommunityName string `yaml:"community_name"`
	SupportHandle string `yaml:"support_handle"`
	ReminderPhoto string `yaml:"reminder_photo"` // optional image attached to customer reminders
	AdminLang     string `yaml:"admin_lang"`
	CustomerLang  string `yaml:"customer_lang"`
}

type SchedulerConfig struct {
	AdmissionSpec  string        `yaml:"admission_spec"`
	ExpirationSpec string        `yaml:"expiration_spec"`
	ReminderSpec   string        `yaml:"reminder_spec"`
	ReminderDays   []int         `yaml:"reminder_days"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr" env:"HTTP_ADDR"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type PlanConfig struct {
	Period string `yaml:"period"`
	Price  int64  `yaml:"price"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	HTTP      HTTPConfig      `yaml:"http"`
	Plans     []PlanConfig    `yaml:"plans"`
	TimeZone  string          `yaml:"timezone" env:"TIME_ZONE"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses -config and -dev and then reads the file.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Load reads the YAML file, overlays .env and process environment, then
// applies defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	_ = godotenv.Load()
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Bot.APIEndpoint == "" {
		cfg.Bot.APIEndpoint = "https://api.telegram.org/bot%s/%s"
	}
	if cfg.Bot.Timeout <= 0 {
		cfg.Bot.Timeout = 10 * time.Second
	}
	if cfg.Bot.RatePerSec <= 0 {
		cfg.Bot.RatePerSec = 25
	}
	if cfg.Bot.Burst <= 0 {
		cfg.Bot.Burst = 5
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Ledger.Endpoint == "" {
		cfg.Ledger.Endpoint = "https://apilist.tronscanapi.com/api/transaction-info"
	}
	if cfg.Ledger.Timeout <= 0 {
		cfg.Ledger.Timeout = 10 * time.Second
	}
	if cfg.Notifier.ExplorerURL == "" {
		cfg.Notifier.ExplorerURL = "https://tronscan.org/#/transaction/"
	}
	if cfg.Notifier.AdminLang == "" {
		cfg.Notifier.AdminLang = "en"
	}
	if cfg.Notifier.CustomerLang == "" {
		cfg.Notifier.CustomerLang = "ru"
	}
	if cfg.Scheduler.AdmissionSpec == "" {
		cfg.Scheduler.AdmissionSpec = "@every 10s"
	}
	if cfg.Scheduler.ExpirationSpec == "" {
		cfg.Scheduler.ExpirationSpec = "@every 10s"
	}
	if cfg.Scheduler.ReminderSpec == "" {
		cfg.Scheduler.ReminderSpec = "0 0 * * *"
	}
	if len(cfg.Scheduler.ReminderDays) == 0 {
		cfg.Scheduler.ReminderDays = []int{1, 3, 7}
	}
	if cfg.Scheduler.RunTimeout <= 0 {
		cfg.Scheduler.RunTimeout = 5 * time.Minute
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "Europe/Moscow"
	}
}

// Validate performs the minimal checks needed to start the service.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Ledger.Wallet == "" {
		return errors.New("ledger.wallet is required")
	}
	if c.Ledger.APIKey == "" {
		return errors.New("ledger.api_key is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, d := range c.Scheduler.ReminderDays {
		if d <= 0 {
			return fmt.Errorf("scheduler.reminder_days: %d is not positive", d)
		}
	}
	for _, p := range c.Plans {
		if p.Price <= 0 {
			return fmt.Errorf("plans: price for %q must be positive", p.Period)
		}
	}
	return nil
}

// PlanPrices is the seed catalog keyed by period token.
func (c *Config) PlanPrices() map[string]int64 {
	out := make(map[string]int64, len(c.Plans))
	for _, p := range c.Plans {
		out[p.Period] = p.Price
	}
	return out
}

// Location is the reference timezone for ledger day checks, message dates and cron.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
