package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"careerbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: careerbook
  environment: test
database:
  path: /tmp/test.db
api:
  enabled: true
consultants:
  - id: 1
    name: Alice
    email: alice@x.com
    availability: ["10:00 AM", "11:00 AM"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.True(t, cfg.API.Auth.Enabled)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 2*time.Hour, cfg.ReminderLead())
	assert.Equal(t, 365, cfg.Booking.MaxBookingDays)
	assert.Equal(t, 10*time.Second, cfg.Notifier.Timeout())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/tmp/env.db")
	path := writeConfig(t, `
database:
  path: ${TEST_DB_PATH}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
}

func TestValidateRequiresDatabasePath(t *testing.T) {
	path := writeConfig(t, `
app:
  name: careerbook
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateConsultants(t *testing.T) {
	err := ValidateConsultants([]models.Consultant{
		{ID: 0, Name: "NoID", Email: "a@x.com"},
	})
	assert.Error(t, err)

	err = ValidateConsultants([]models.Consultant{
		{ID: 1, Name: "A", Email: "a@x.com"},
		{ID: 1, Name: "B", Email: "b@x.com"},
	})
	assert.Error(t, err)

	err = ValidateConsultants([]models.Consultant{
		{ID: 1, Name: "A", Email: "a@x.com"},
		{ID: 2, Name: "B", Email: "a@x.com"},
	})
	assert.Error(t, err)

	err = ValidateConsultants([]models.Consultant{
		{ID: 1, Name: "A", Email: "a@x.com", Availability: []string{"not a time"}},
	})
	assert.Error(t, err)

	err = ValidateConsultants([]models.Consultant{
		{ID: 1, Name: "A", Email: "a@x.com", Availability: []string{"10:00 AM"}},
		{ID: 2, Name: "B", Email: "b@x.com", Availability: []string{"1:30 PM"}},
	})
	assert.NoError(t, err)
}

func TestNotifierValidation(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
notifier:
  smtp_host: smtp.example.com
`)

	_, err := Load(path)
	assert.Error(t, err)
}
