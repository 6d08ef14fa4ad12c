package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	Timezone        string `mapstructure:"TIMEZONE"`
	MinBookingHours int    `mapstructure:"MIN_BOOKING_HOURS"`
	MaxDaysAhead    int    `mapstructure:"MAX_DAYS_AHEAD"`
	PhoneMinLength  int    `mapstructure:"PHONE_MIN_LENGTH"`

	BusinessName    string `mapstructure:"BUSINESS_NAME"`
	BusinessEmail   string `mapstructure:"BUSINESS_EMAIL"`
	BusinessPhone   string `mapstructure:"BUSINESS_PHONE"`
	BusinessAddress string `mapstructure:"BUSINESS_ADDRESS"`

	GoogleClientEmail string `mapstructure:"GOOGLE_CLIENT_EMAIL"`
	GooglePrivateKey  string `mapstructure:"GOOGLE_PRIVATE_KEY"`
	GoogleProjectID   string `mapstructure:"GOOGLE_PROJECT_ID"`

	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort int    `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
	SMTPFrom string `mapstructure:"SMTP_FROM"`

	WhatsAppAPIURL string `mapstructure:"WHATSAPP_API_URL"`
	WhatsAppAPIKey string `mapstructure:"WHATSAPP_API_KEY"`

	RedisURL        string        `mapstructure:"REDIS_URL"`
	ClientCacheSize int           `mapstructure:"CLIENT_CACHE_SIZE"`
	ClientCacheTTL  time.Duration `mapstructure:"CLIENT_CACHE_TTL"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	ICSBlockFeeds   string        `mapstructure:"ICS_BLOCK_FEEDS"`
	ICSFetchTimeout time.Duration `mapstructure:"ICS_FETCH_TIMEOUT"`

	ReminderCron    string `mapstructure:"REMINDER_CRON"`
	ReminderEnabled bool   `mapstructure:"REMINDER_ENABLED"`

	ConfirmTokenSecret string        `mapstructure:"CONFIRM_TOKEN_SECRET"`
	ConfirmTokenTTL    time.Duration `mapstructure:"CONFIRM_TOKEN_TTL"`
	PublicBaseURL      string        `mapstructure:"PUBLIC_BASE_URL"`

	OperatorTokenSecret string `mapstructure:"OPERATOR_TOKEN_SECRET"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"TIMEZONE", "MIN_BOOKING_HOURS", "MAX_DAYS_AHEAD", "PHONE_MIN_LENGTH",
	"BUSINESS_NAME", "BUSINESS_EMAIL", "BUSINESS_PHONE", "BUSINESS_ADDRESS",
	"GOOGLE_CLIENT_EMAIL", "GOOGLE_PRIVATE_KEY", "GOOGLE_PROJECT_ID",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM",
	"WHATSAPP_API_URL", "WHATSAPP_API_KEY",
	"REDIS_URL", "CLIENT_CACHE_SIZE", "CLIENT_CACHE_TTL",
	"KAFKA_BROKERS", "KAFKA_TOPIC",
	"ICS_BLOCK_FEEDS", "ICS_FETCH_TIMEOUT",
	"REMINDER_CRON", "REMINDER_ENABLED",
	"CONFIRM_TOKEN_SECRET", "CONFIRM_TOKEN_TTL", "PUBLIC_BASE_URL",
	"OPERATOR_TOKEN_SECRET",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("TIMEZONE", "America/Mexico_City")
	v.SetDefault("MIN_BOOKING_HOURS", 1)
	v.SetDefault("MAX_DAYS_AHEAD", 90)
	v.SetDefault("PHONE_MIN_LENGTH", 10)
	v.SetDefault("BUSINESS_NAME", "Clínica")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("CLIENT_CACHE_SIZE", 1000)
	v.SetDefault("CLIENT_CACHE_TTL", "30m")
	v.SetDefault("KAFKA_TOPIC", "agenda.appointments")
	v.SetDefault("ICS_FETCH_TIMEOUT", "15s")
	v.SetDefault("REMINDER_CRON", "0 9 * * *")
	v.SetDefault("REMINDER_ENABLED", true)
	v.SetDefault("CONFIRM_TOKEN_TTL", "48h")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	for _, k := range keys {
		v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	// .env files often carry the PEM with literal \n sequences.
	cfg.GooglePrivateKey = strings.ReplaceAll(cfg.GooglePrivateKey, `\n`, "\n")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location resolves TIMEZONE. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// UseGoogleCalendar reports whether service-account credentials are set.
func (c *Config) UseGoogleCalendar() bool {
	return c.GoogleClientEmail != ""
}

// ConfirmLinksEnabled reports whether reminders can carry signed confirm links.
func (c *Config) ConfirmLinksEnabled() bool {
	return c.ConfirmTokenSecret != "" && c.PublicBaseURL != ""
}

// Validate checks settings that Load cannot default away.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a valid IANA zone: %w", c.Timezone, err)
	}
	if c.MinBookingHours < 0 {
		return fmt.Errorf("MIN_BOOKING_HOURS must be >= 0, got %d", c.MinBookingHours)
	}
	if c.MaxDaysAhead <= 0 {
		return fmt.Errorf("MAX_DAYS_AHEAD must be > 0, got %d", c.MaxDaysAhead)
	}
	if c.SMTPHost != "" && c.SMTPPort <= 0 {
		return fmt.Errorf("SMTP_PORT must be set when SMTP_HOST is %q", c.SMTPHost)
	}
	if c.GoogleClientEmail != "" && c.GooglePrivateKey == "" {
		return fmt.Errorf("GOOGLE_PRIVATE_KEY is required when GOOGLE_CLIENT_EMAIL is set")
	}
	if c.ConfirmTokenSecret != "" && len(c.ConfirmTokenSecret) < 16 {
		return fmt.Errorf("CONFIRM_TOKEN_SECRET must be at least 16 characters")
	}
	if !c.IsDev() && c.OperatorTokenSecret == "" {
		return fmt.Errorf("OPERATOR_TOKEN_SECRET is required outside development")
	}
	if c.ReminderEnabled {
		if _, err := cron.ParseStandard(c.ReminderCron); err != nil {
			return fmt.Errorf("REMINDER_CRON %q: %w", c.ReminderCron, err)
		}
	}
	return nil
}
