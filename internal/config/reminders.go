package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReminderConfig is the operator-tunable reminder policy.
type ReminderConfig struct {
	DefaultDaysBeforeDue int           `mapstructure:"defaultDaysBeforeDue"`
	DefaultDaysAfterDue  int           `mapstructure:"defaultDaysAfterDue"`
	SweepTimeout         time.Duration `mapstructure:"sweepTimeout"`
	LockTTL              time.Duration `mapstructure:"lockTTL"`
}

func DefaultReminderConfig() ReminderConfig {
	return ReminderConfig{
		DefaultDaysBeforeDue: 3,
		DefaultDaysAfterDue:  3,
		SweepTimeout:         5 * time.Minute,
		LockTTL:              10 * time.Minute,
	}
}

type ReminderConfigHolder struct {
	current atomic.Value // holds ReminderConfig
}

// NewStaticReminderConfigHolder returns a holder that never reloads.
func NewStaticReminderConfigHolder(cfg ReminderConfig) *ReminderConfigHolder {
	holder := &ReminderConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewReminderConfigHolder reads reminders.yml and, when the file exists, watches it.
// Reloads that fail to parse or validate keep the previous policy.
func NewReminderConfigHolder(log *zap.Logger) (*ReminderConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.reminders")

	v := viper.New()

	v.SetConfigName("reminders")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/invoicer")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INVOICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReminderConfig()
	v.SetDefault("reminders.defaultDaysBeforeDue", defaults.DefaultDaysBeforeDue)
	v.SetDefault("reminders.defaultDaysAfterDue", defaults.DefaultDaysAfterDue)
	v.SetDefault("reminders.sweepTimeout", defaults.SweepTimeout)
	v.SetDefault("reminders.lockTTL", defaults.LockTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ReminderConfig
	if err := v.UnmarshalKey("reminders", &cfg); err != nil {
		return nil, err
	}
	if err := validateReminderConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReminderConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		holder.reload(v, log, e.Name)
	})

	return holder, nil
}

// reload swaps in the policy currently held by v. An invalid policy is logged and dropped.
func (h *ReminderConfigHolder) reload(v *viper.Viper, log *zap.Logger, file string) bool {
	var updated ReminderConfig
	if err := v.UnmarshalKey("reminders", &updated); err != nil {
		log.Warn("reminder config reload failed", zap.String("file", file), zap.Error(err))
		return false
	}
	if err := validateReminderConfig(updated); err != nil {
		log.Warn("reminder config invalid, keeping previous", zap.String("file", file), zap.Error(err))
		return false
	}
	h.current.Store(updated)
	log.Info("reminder config reloaded",
		zap.String("file", file),
		zap.Int("default_days_before_due", updated.DefaultDaysBeforeDue),
		zap.Int("default_days_after_due", updated.DefaultDaysAfterDue),
	)
	return true
}

func (h *ReminderConfigHolder) Get() ReminderConfig {
	if h == nil {
		return DefaultReminderConfig()
	}
	cfg, ok := h.current.Load().(ReminderConfig)
	if !ok {
		return DefaultReminderConfig()
	}
	return cfg
}

func validateReminderConfig(cfg ReminderConfig) error {
	if cfg.DefaultDaysBeforeDue < 0 {
		return errors.New("reminders.defaultDaysBeforeDue cannot be negative")
	}
	if cfg.DefaultDaysAfterDue < 0 {
		return errors.New("reminders.defaultDaysAfterDue cannot be negative")
	}
	if cfg.SweepTimeout <= 0 {
		return errors.New("reminders.sweepTimeout must be positive")
	}
	if cfg.LockTTL <= 0 {
		return errors.New("reminders.lockTTL must be positive")
	}
	return nil
}
