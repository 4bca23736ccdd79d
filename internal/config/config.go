package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Studio        StudioConfig        `yaml:"studio"`
	Storage       StorageConfig       `yaml:"storage"`
	Google        GoogleConfig        `yaml:"google"`
	Reminders     RemindersConfig     `yaml:"reminders"`
	Email         EmailConfig         `yaml:"email"`
	SMS           SMSConfig           `yaml:"sms"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	OTP           OTPConfig           `yaml:"otp"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Cache         CacheConfig         `yaml:"cache"`
	AdminStore    AdminStoreConfig    `yaml:"admin_store"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig        `yaml:"admin"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// AdminConfig controls the single-password admin session.
// Password may be plain text or a bcrypt hash.
type AdminConfig struct {
	Password      string        `yaml:"password"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	AutoMigrate    bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
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

type StudioConfig struct {
	Name                  string               `yaml:"name"`
	Timezone              string               `yaml:"timezone"`
	Address               string               `yaml:"address"`
	ContactPhone          string               `yaml:"contact_phone"`
	SlotStepMinutes       int                  `yaml:"slot_step_minutes"`
	BookingHorizonDays    int                  `yaml:"booking_horizon_days"`
	MaxActiveAppointments int                  `yaml:"max_active_appointments"`
	BusinessHours         models.BusinessHours `yaml:"business_hours"`
	Services              []models.Service     `yaml:"services"`
}

// Location resolves the studio timezone.
func (s StudioConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

func (s StudioConfig) SlotStep() time.Duration {
	return time.Duration(s.SlotStepMinutes) * time.Minute
}

type StorageConfig struct {
	Mode string `yaml:"mode"`
}

type GoogleConfig struct {
	CredentialsFile string        `yaml:"credentials_file"`
	CredentialsJSON string        `yaml:"credentials_json"`
	CalendarID      string        `yaml:"calendar_id"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// Enabled reports whether calendar credentials are configured.
func (g GoogleConfig) Enabled() bool {
	return g.CalendarID != "" && (g.CredentialsFile != "" || g.CredentialsJSON != "")
}

type RemindersConfig struct {
	Enabled         bool          `yaml:"enabled"`
	EveningHour     int           `yaml:"evening_hour"`
	MorningHour     int           `yaml:"morning_hour"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	CompletionSweep bool          `yaml:"completion_sweep"`
}

type EmailConfig struct {
	Provider       string `yaml:"provider"`
	FromAddress    string `yaml:"from_address"`
	FromName       string `yaml:"from_name"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	SMTPHost       string `yaml:"smtp_host"`
	SMTPPort       int    `yaml:"smtp_port"`
	SMTPUsername   string `yaml:"smtp_username"`
	SMTPPassword   string `yaml:"smtp_password"`
}

type SMSConfig struct {
	Enabled    bool          `yaml:"enabled"`
	APIKey     string        `yaml:"api_key"`
	SenderName string        `yaml:"sender_name"`
	Endpoint   string        `yaml:"endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	OwnerChatID int64  `yaml:"owner_chat_id"`
}

type OTPConfig struct {
	Length      int           `yaml:"length"`
	Expiry      time.Duration `yaml:"expiry"`
	MaxAttempts int           `yaml:"max_attempts"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

type NotificationsConfig struct {
	Workers    int `yaml:"workers"`
	QueueSize  int `yaml:"queue_size"`
	MaxRetries int `yaml:"max_retries"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type AdminStoreConfig struct {
	BlockedSlotsFile string `yaml:"blocked_slots_file"`
	GalleryFile      string `yaml:"gallery_file"`
	GalleryDir       string `yaml:"gallery_dir"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

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
	switch c.Storage.Mode {
	case models.StorageModeDatabase:
	case models.StorageModeCalendar:
		if !c.Google.Enabled() {
			return errors.New("storage.mode=calendar requires google.calendar_id and credentials")
		}
	default:
		return fmt.Errorf("unknown storage mode %q", c.Storage.Mode)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case "postgres":
		if c.Database.Postgres.URL == "" {
			return errors.New("database.postgres.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if _, err := c.Studio.Location(); err != nil {
		return fmt.Errorf("invalid studio timezone %q: %w", c.Studio.Timezone, err)
	}
	if c.Studio.MaxActiveAppointments < 1 {
		return errors.New("studio.max_active_appointments must be at least 1")
	}
	if c.Studio.BookingHorizonDays < 0 {
		return errors.New("studio.booking_horizon_days must not be negative")
	}
	if err := ValidateBusinessHours(c.Studio.BusinessHours); err != nil {
		return err
	}
	if err := ValidateServices(c.Studio.Services); err != nil {
		return err
	}

	r := c.Reminders
	if r.EveningHour < 0 || r.EveningHour > 23 || r.MorningHour < 0 || r.MorningHour > 23 {
		return errors.New("reminder hours must be within 0..23")
	}
	if r.EveningHour == r.MorningHour {
		return errors.New("reminder evening and morning hours must differ")
	}

	switch strings.ToLower(c.Email.Provider) {
	case "", "none", "sendgrid", "smtp":
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}

	return nil
}

func ValidateBusinessHours(hours models.BusinessHours) error {
	for day, h := range hours {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("business hours: invalid weekday %d", day)
		}
		if h.Open == "" && h.Close == "" {
			continue
		}
		open, err := time.Parse(models.TimeLayout, h.Open)
		if err != nil {
			return fmt.Errorf("business hours %s: invalid open %q", day, h.Open)
		}
		closeAt, err := time.Parse(models.TimeLayout, h.Close)
		if err != nil {
			return fmt.Errorf("business hours %s: invalid close %q", day, h.Close)
		}
		if !open.Before(closeAt) {
			return fmt.Errorf("business hours %s: open must be before close", day)
		}
	}
	return nil
}

func ValidateServices(services []models.Service) error {
	if len(services) == 0 {
		return errors.New("at least one service is required")
	}
	names := make(map[string]bool)
	for _, s := range services {
		if s.Name == "" {
			return errors.New("service with empty name")
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate service name found: %s", s.Name)
		}
		names[s.Name] = true
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service '%s' has invalid duration %d", s.Name, s.DurationMinutes)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "studio-booking"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Admin.SessionTTL == 0 {
		c.API.Admin.SessionTTL = 12 * time.Hour
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "data/studio.db"
	}
	if c.Database.Postgres.MaxConnections == 0 {
		c.Database.Postgres.MaxConnections = 10
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = models.StorageModeDatabase
	}

	// Studio defaults
	if c.Studio.Name == "" {
		c.Studio.Name = "LISHAI SIMANI"
	}
	if c.Studio.Timezone == "" {
		c.Studio.Timezone = models.DefaultTimezone
	}
	if c.Studio.SlotStepMinutes == 0 {
		c.Studio.SlotStepMinutes = models.DefaultSlotStepMinutes
	}
	if c.Studio.BookingHorizonDays == 0 {
		c.Studio.BookingHorizonDays = models.DefaultBookingHorizonDays
	}
	if c.Studio.MaxActiveAppointments == 0 {
		c.Studio.MaxActiveAppointments = models.DefaultMaxActiveBookings
	}
	if len(c.Studio.BusinessHours) == 0 {
		c.Studio.BusinessHours = models.DefaultBusinessHours()
	}
	if len(c.Studio.Services) == 0 {
		c.Studio.Services = models.DefaultServices()
	}

	if c.Google.RequestTimeout == 0 {
		c.Google.RequestTimeout = 10 * time.Second
	}

	// Reminder defaults
	if c.Reminders.EveningHour == 0 && c.Reminders.MorningHour == 0 {
		c.Reminders.EveningHour = models.DefaultEveningReminderHour
		c.Reminders.MorningHour = models.DefaultMorningReminderHour
	}
	if c.Reminders.StaleAfter == 0 {
		c.Reminders.StaleAfter = models.DefaultStaleClaimMinutes * time.Minute
	}

	if c.SMS.SenderName == "" {
		c.SMS.SenderName = "LISHAI SIM"
	}
	if c.SMS.Timeout == 0 {
		c.SMS.Timeout = 30 * time.Second
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Email.FromName == "" {
		c.Email.FromName = c.Studio.Name
	}

	if c.OTP.Length == 0 {
		c.OTP.Length = models.DefaultOTPLength
	}
	if c.OTP.Expiry == 0 {
		c.OTP.Expiry = models.DefaultOTPExpiryMinutes * time.Minute
	}
	if c.OTP.MaxAttempts == 0 {
		c.OTP.MaxAttempts = models.DefaultOTPMaxAttempts
	}
	if c.OTP.Cooldown == 0 {
		c.OTP.Cooldown = models.DefaultOTPCooldownMinutes * time.Minute
	}

	if c.Notifications.Workers == 0 {
		c.Notifications.Workers = 2
	}
	if c.Notifications.QueueSize == 0 {
		c.Notifications.QueueSize = 128
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = models.DefaultCacheTTLSeconds * time.Second
	}

	if c.AdminStore.BlockedSlotsFile == "" {
		c.AdminStore.BlockedSlotsFile = "data/blocked_slots.json"
	}
	if c.AdminStore.GalleryFile == "" {
		c.AdminStore.GalleryFile = "data/gallery.json"
	}
	if c.AdminStore.GalleryDir == "" {
		c.AdminStore.GalleryDir = "static/images"
	}
}
