package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"careerbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig           `yaml:"app"`
	Database    DatabaseConfig      `yaml:"database"`
	Redis       RedisConfig         `yaml:"redis"`
	Monitoring  MonitoringConfig    `yaml:"monitoring"`
	Logging     LoggingConfig       `yaml:"logging"`
	API         APIConfig           `yaml:"api"`
	Notifier    NotifierConfig      `yaml:"notifier"`
	Booking     BookingConfig       `yaml:"booking"`
	Exports     ExportConfig        `yaml:"exports"`
	Google      GoogleConfig        `yaml:"google"`
	Consultants []models.Consultant `yaml:"consultants"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// NotifierConfig configures the SMTP mailer. With an empty host the service
// falls back to a log-only mailer.
type NotifierConfig struct {
	SMTPHost    string `yaml:"smtp_host"`
	SMTPPort    int    `yaml:"smtp_port"`
	From        string `yaml:"from"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	UseTLS      bool   `yaml:"use_tls"`
	AdminEmail  string `yaml:"admin_email"`
	SendTimeout string `yaml:"send_timeout"`
}

type BookingConfig struct {
	ReminderLeadHours int `yaml:"reminder_lead_hours"`
	MaxBookingDays    int `yaml:"max_booking_days"`
	RateLimitAttempts int `yaml:"rate_limit_attempts"`
	RateLimitWindow   int `yaml:"rate_limit_window_seconds"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadSheetID string `yaml:"bookings_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; the environment may already be populated.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Notifier.SMTPHost != "" && c.Notifier.From == "" {
		return errors.New("notifier.from is required when smtp_host is set")
	}

	return ValidateConsultants(c.Consultants)
}

func ValidateConsultants(consultants []models.Consultant) error {
	ids := make(map[int64]bool)
	emails := make(map[string]bool)
	for _, consultant := range consultants {
		if consultant.ID == 0 {
			return fmt.Errorf("consultant '%s' has invalid ID 0", consultant.Name)
		}
		if ids[consultant.ID] {
			return fmt.Errorf("duplicate consultant ID found: %d", consultant.ID)
		}
		ids[consultant.ID] = true

		if consultant.Email == "" {
			return fmt.Errorf("consultant %d has no email", consultant.ID)
		}
		if emails[consultant.Email] {
			return fmt.Errorf("duplicate consultant email found: %s", consultant.Email)
		}
		emails[consultant.Email] = true

		for _, label := range consultant.Availability {
			if err := models.ParseSlotLabel(label); err != nil {
				return fmt.Errorf("consultant %d: %w", consultant.ID, err)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.Auth.Enabled && c.API.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.App.Timezone == "" {
		c.App.Timezone = "Local"
	}

	if c.Notifier.SMTPPort == 0 {
		c.Notifier.SMTPPort = 587
	}
	if c.Notifier.SendTimeout == "" {
		c.Notifier.SendTimeout = "10s"
	}

	if c.Booking.ReminderLeadHours == 0 {
		c.Booking.ReminderLeadHours = int(models.ReminderLead / time.Hour)
	}
	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = 365
	}
	if c.Booking.RateLimitAttempts == 0 {
		c.Booking.RateLimitAttempts = models.RateLimitBookings
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = int(models.RateLimitWindow / time.Second)
	}
}

// ReminderLead returns the configured reminder lead as a duration.
func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.Booking.ReminderLeadHours) * time.Hour
}

// Timeout parses the notifier send timeout, defaulting to 10s.
func (c *NotifierConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.SendTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Location resolves the app timezone for appointment arithmetic.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
