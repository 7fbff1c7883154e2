package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("CRON_SECRET", "0123456789abcdef0123")
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := loadFromEnv()
	require.NoError(t, ValidateProductionConfig(cfg))

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "0 9 * * *", cfg.Scheduler.NurtureSpec)
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.SMSSpec)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.False(t, cfg.FollowUp.MailDispatcherEnabled)
	assert.False(t, cfg.Queue.Enabled)
	assert.True(t, cfg.SMS.IsMock())
	assert.Equal(t, 10*time.Minute, cfg.FollowUp.RunLockTTL)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("FOLLOW_UP_RUN_TIMEOUT", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SCHEDULER_ENABLED", "true")

	cfg := loadFromEnv()
	require.NoError(t, ValidateProductionConfig(cfg))

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.FollowUp.RunTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoadFromEnv_MalformedValuesFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg := loadFromEnv()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestValidateProductionConfig_CollectsAllProblems(t *testing.T) {
	cfg := loadFromEnv()
	cfg.Database.Password = ""
	cfg.Security.CronSecret = "short"
	cfg.JWT.SecretKey = ""
	cfg.Logging.Level = "verbose"

	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DB_PASSWORD is required")
	assert.Contains(t, msg, "CRON_SECRET must be at least 16 characters long")
	assert.Contains(t, msg, "JWT_SECRET_KEY must be at least 32 characters long")
	assert.Contains(t, msg, "LOG_LEVEL must be one of")
	assert.Contains(t, msg, "; ")
}

func TestValidateProductionConfig_MailDispatcherNeedsSMTP(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAIL_DISPATCHER_ENABLED", "true")

	cfg := loadFromEnv()
	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMAIL_HOST is required when the mail dispatcher is enabled")

	cfg.Email.Host = "smtp.example.com"
	assert.NoError(t, ValidateProductionConfig(cfg))
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable TimeZone=UTC", c.DSN())
}
