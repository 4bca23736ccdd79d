package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STUDIO_TEST_ADMIN_PASSWORD", "secret")

	path := writeConfig(t, `
app:
  name: "studio"
database:
  driver: sqlite
  path: "test.db"
api:
  admin:
    password: "${STUDIO_TEST_ADMIN_PASSWORD}"
studio:
  business_hours:
    0: {open: "10:00", close: "18:00"}
  services:
    - name: "Gel Polish"
      display_name: "לק ג'ל"
      price: 120
      duration_minutes: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.API.Admin.Password)
	assert.Equal(t, models.StorageModeDatabase, cfg.Storage.Mode)
	assert.Equal(t, models.DefaultTimezone, cfg.Studio.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.Studio.SlotStep())
	assert.Equal(t, 2, cfg.Studio.MaxActiveAppointments)
	assert.Equal(t, 20, cfg.Reminders.EveningHour)
	assert.Equal(t, 8, cfg.Reminders.MorningHour)
	assert.Equal(t, 5*time.Minute, cfg.OTP.Expiry)

	require.Len(t, cfg.Studio.Services, 1)
	assert.Equal(t, 60, cfg.Studio.Services[0].DurationMinutes)

	h, ok := cfg.Studio.BusinessHours.For(time.Sunday)
	require.True(t, ok)
	assert.Equal(t, "10:00", h.Open)
	_, ok = cfg.Studio.BusinessHours.For(time.Monday)
	assert.False(t, ok)
}

func TestLoadConfigDefaultsCatalog(t *testing.T) {
	path := writeConfig(t, "app:\n  name: studio\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Studio.Services, len(models.DefaultServices()))
	assert.Len(t, cfg.Studio.BusinessHours, 5)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func validConfig() Config {
	c := Config{}
	c.applyDefaults()
	return c
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:    "calendar mode without credentials",
			mutate:  func(c *Config) { c.Storage.Mode = models.StorageModeCalendar },
			wantErr: true,
		},
		{
			name: "calendar mode with credentials",
			mutate: func(c *Config) {
				c.Storage.Mode = models.StorageModeCalendar
				c.Google.CalendarID = "cal@group.calendar.google.com"
				c.Google.CredentialsJSON = "{}"
			},
		},
		{
			name:    "unknown storage mode",
			mutate:  func(c *Config) { c.Storage.Mode = "sheets" },
			wantErr: true,
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: true,
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Studio.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name: "duplicate service name",
			mutate: func(c *Config) {
				c.Studio.Services = []models.Service{
					{Name: "Eyebrows", DurationMinutes: 20},
					{Name: "Eyebrows", DurationMinutes: 30},
				}
			},
			wantErr: true,
		},
		{
			name: "zero duration",
			mutate: func(c *Config) {
				c.Studio.Services = []models.Service{{Name: "Eyebrows"}}
			},
			wantErr: true,
		},
		{
			name: "open after close",
			mutate: func(c *Config) {
				c.Studio.BusinessHours = models.BusinessHours{time.Sunday: {Open: "20:00", Close: "09:00"}}
			},
			wantErr: true,
		},
		{
			name:    "same reminder hours",
			mutate:  func(c *Config) { c.Reminders.MorningHour = 20 },
			wantErr: true,
		},
		{
			name:    "unknown email provider",
			mutate:  func(c *Config) { c.Email.Provider = "mailgun" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
