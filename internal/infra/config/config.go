package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"prayer_attendance/internal/domain/attendance"
	"prayer_attendance/internal/domain/period"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	StaticDir     string `env:"STATIC_DIR" envDefault:"static"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required,notEmpty"` // base of every flow/prompt URL handed to the telephony engine
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	Environment   string `env:"ENVIRONMENT" envDefault:"development"`

	Timezone           string `env:"TIMEZONE" envDefault:"Asia/Kolkata"`
	PrayerStartMinute  int    `env:"PRAYER_START_MINUTE" envDefault:"240"`
	PrayerEndMinute    int    `env:"PRAYER_END_MINUTE" envDefault:"420"`
	ReadingStartMinute int    `env:"READING_START_MINUTE" envDefault:"1140"`
	ReadingEndMinute   int    `env:"READING_END_MINUTE" envDefault:"1200"`
	MaintenanceMinutes int    `env:"MAINTENANCE_MINUTES" envDefault:"30"`

	PrayerGrace  time.Duration `env:"PRAYER_GRACE" envDefault:"5m"`
	ReadingGrace time.Duration `env:"READING_GRACE" envDefault:"5m"`
	RedialGrace  time.Duration `env:"REDIAL_GRACE" envDefault:"2m"`

	CallerID     string `env:"CALLER_ID,required,notEmpty"`
	AdminContact string `env:"ADMIN_CONTACT"`
	AdminPin     string `env:"ADMIN_PIN"`
	CountryCode  string `env:"COUNTRY_CODE" envDefault:"+91"`

	BulkSMSURL         string        `env:"BULKSMS_URL,required,notEmpty"`
	BulkSMSAPIID       string        `env:"BULKSMS_API_ID,required,notEmpty"`
	BulkSMSAPIPassword string        `env:"BULKSMS_API_PASSWORD,required,notEmpty"`
	SMSTimeout         time.Duration `env:"SMS_TIMEOUT" envDefault:"10s"`
	SMSIndividualLimit int           `env:"SMS_INDIVIDUAL_LIMIT" envDefault:"35"`
	BulkLockChunkSize  int           `env:"BULK_LOCK_CHUNK_SIZE" envDefault:"95"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	OperatorChatID int64  `env:"OPERATOR_CHAT_ID"`

	// TelegramCommands makes the bot poll for operator commands instead of only sending alerts.
	TelegramCommands bool `env:"TELEGRAM_COMMANDS" envDefault:"false"`

	CronSpecDrainQueue string        `env:"CRON_SPEC_DRAIN_QUEUE" envDefault:"*/15 * * * *"`
	CronSpecVerses     string        `env:"CRON_SPEC_DAILY_VERSES" envDefault:"1 0 * * *"`
	CronSpecBirthdays  string        `env:"CRON_SPEC_BIRTHDAYS" envDefault:"5 0 * * *"`
	CronSpecSweeps     []string      `env:"CRON_SPEC_SWEEPS" envSeparator:";" envDefault:"27 7 * * *;2 20 * * *"`
	JobTimeout         time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`

	location *time.Location
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// .env never overrides variables that are already set
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) finish() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.Environment = strings.ToLower(c.Environment)
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PUBLIC_BASE_URL %q is not an absolute URL", c.PublicBaseURL)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc

	if err := c.Periods().Validate(); err != nil {
		return fmt.Errorf("invalid period windows: %w", err)
	}
	for name, d := range map[string]time.Duration{
		"PRAYER_GRACE": c.PrayerGrace, "READING_GRACE": c.ReadingGrace, "REDIAL_GRACE": c.RedialGrace,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.SMSIndividualLimit < 0 {
		return fmt.Errorf("SMS_INDIVIDUAL_LIMIT must not be negative")
	}
	if c.BulkLockChunkSize <= 0 {
		return fmt.Errorf("BULK_LOCK_CHUNK_SIZE must be positive")
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT must be positive")
	}
	return nil
}

// Periods is the classifier configuration.
func (c *AppConfig) Periods() period.Config {
	return period.Config{
		Prayer:      period.Window{Start: c.PrayerStartMinute, End: c.PrayerEndMinute},
		Reading:     period.Window{Start: c.ReadingStartMinute, End: c.ReadingEndMinute},
		Maintenance: c.MaintenanceMinutes,
		Location:    c.location,
	}
}

// Location is the civil time zone of every window and calendar date.
func (c *AppConfig) Location() *time.Location {
	return c.location
}

// AttendanceRules are the grace allowances of the state machine.
func (c *AppConfig) AttendanceRules() attendance.Rules {
	return attendance.Rules{
		PrayerGrace:  c.PrayerGrace,
		ReadingGrace: c.ReadingGrace,
		RedialGrace:  c.RedialGrace,
	}
}

// TelegramEnabled reports whether operator alerts go to Telegram.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.OperatorChatID != 0
}
