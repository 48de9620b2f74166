package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReminderConfigDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewReminderConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 3, cfg.DefaultDaysBeforeDue)
	assert.Equal(t, 3, cfg.DefaultDaysAfterDue)
	assert.Equal(t, 5*time.Minute, cfg.SweepTimeout)
}

func TestReminderConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("reminders:\n  defaultDaysBeforeDue: 5\n  defaultDaysAfterDue: 7\n  sweepTimeout: 2m\n  lockTTL: 1m\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reminders.yml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewReminderConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 5, cfg.DefaultDaysBeforeDue)
	assert.Equal(t, 7, cfg.DefaultDaysAfterDue)
	assert.Equal(t, 2*time.Minute, cfg.SweepTimeout)
	assert.Equal(t, time.Minute, cfg.LockTTL)
}

func TestReminderConfigReloadLogsAndKeepsPrevious(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)
	holder := NewStaticReminderConfigHolder(DefaultReminderConfig())

	v := viper.New()
	v.Set("reminders.defaultDaysBeforeDue", 2)
	v.Set("reminders.defaultDaysAfterDue", -4)
	assert.False(t, holder.reload(v, log, "reminders.yml"))
	assert.Equal(t, 3, holder.Get().DefaultDaysAfterDue)

	v.Set("reminders.defaultDaysAfterDue", 6)
	v.Set("reminders.sweepTimeout", time.Minute)
	v.Set("reminders.lockTTL", time.Minute)
	assert.True(t, holder.reload(v, log, "reminders.yml"))
	assert.Equal(t, 2, holder.Get().DefaultDaysBeforeDue)
	assert.Equal(t, 6, holder.Get().DefaultDaysAfterDue)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "reminder config invalid, keeping previous", entries[0].Message)
	assert.Equal(t, "reminder config reloaded", entries[1].Message)
}

func TestReminderConfigRejectsNegativeOffsets(t *testing.T) {
	cfg := DefaultReminderConfig()
	cfg.DefaultDaysAfterDue = -1
	assert.Error(t, validateReminderConfig(cfg))
}

func TestGetenvDurationAcceptsDays(t *testing.T) {
	t.Setenv("AUTH_JWT_TTL", "7d")
	assert.Equal(t, 7*24*time.Hour, getenvDuration("AUTH_JWT_TTL", time.Hour))

	t.Setenv("AUTH_JWT_TTL", "90m")
	assert.Equal(t, 90*time.Minute, getenvDuration("AUTH_JWT_TTL", time.Hour))

	t.Setenv("AUTH_JWT_TTL", "junk")
	assert.Equal(t, time.Hour, getenvDuration("AUTH_JWT_TTL", time.Hour))
}

func TestEmailConfigConfigured(t *testing.T) {
	assert.False(t, EmailConfig{}.Configured())
	assert.True(t, EmailConfig{SMTPHost: "smtp.local", SMTPPort: 587, SMTPFrom: "billing@example.com"}.Configured())
}
