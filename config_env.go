package authkit

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// envSettings mirrors the AUTHKIT_* environment surface. Durations are
// strings in time.ParseDuration syntax.
type envSettings struct {
	PolicyInterval   string
	DisplayInterval  string
	RefreshThreshold string
	WarningThreshold string
	MaxLoginAttempts int
	LockoutWindow    string
	RequestTimeout   string
	LogoutTimeout    string
	AdminRole        string
	AuditEnabled     *bool
	MetricsEnabled   *bool
}

var envKeys = []string{
	"POLICY_INTERVAL", "DISPLAY_INTERVAL", "REFRESH_THRESHOLD",
	"WARNING_THRESHOLD", "MAX_LOGIN_ATTEMPTS", "LOCKOUT_WINDOW",
	"REQUEST_TIMEOUT", "LOGOUT_TIMEOUT", "ADMIN_ROLE",
	"AUDIT_ENABLED", "METRICS_ENABLED",
}

// FromEnv builds a [Config] from defaults overridden by AUTHKIT_* env vars
// and an optional .env file in the working directory. Env vars win over the
// file; a missing file is ignored so CI needs no fixture.
func FromEnv() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.SetEnvPrefix("AUTHKIT")
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	settings := envSettings{
		PolicyInterval:   v.GetString("POLICY_INTERVAL"),
		DisplayInterval:  v.GetString("DISPLAY_INTERVAL"),
		RefreshThreshold: v.GetString("REFRESH_THRESHOLD"),
		WarningThreshold: v.GetString("WARNING_THRESHOLD"),
		MaxLoginAttempts: v.GetInt("MAX_LOGIN_ATTEMPTS"),
		LockoutWindow:    v.GetString("LOCKOUT_WINDOW"),
		RequestTimeout:   v.GetString("REQUEST_TIMEOUT"),
		LogoutTimeout:    v.GetString("LOGOUT_TIMEOUT"),
		AdminRole:        v.GetString("ADMIN_ROLE"),
	}
	if v.IsSet("AUDIT_ENABLED") {
		b := v.GetBool("AUDIT_ENABLED")
		settings.AuditEnabled = &b
	}
	if v.IsSet("METRICS_ENABLED") {
		b := v.GetBool("METRICS_ENABLED")
		settings.MetricsEnabled = &b
	}

	cfg := defaultConfig()
	if err := applyEnv(&cfg, settings); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, s envSettings) error {
	durations := []struct {
		raw  string
		key  string
		into *time.Duration
	}{
		{s.PolicyInterval, "AUTHKIT_POLICY_INTERVAL", &cfg.Clock.PolicyInterval},
		{s.DisplayInterval, "AUTHKIT_DISPLAY_INTERVAL", &cfg.Clock.DisplayInterval},
		{s.RefreshThreshold, "AUTHKIT_REFRESH_THRESHOLD", &cfg.Clock.RefreshThreshold},
		{s.WarningThreshold, "AUTHKIT_WARNING_THRESHOLD", &cfg.Clock.WarningThreshold},
		{s.LockoutWindow, "AUTHKIT_LOCKOUT_WINDOW", &cfg.Limiter.LockoutWindow},
		{s.RequestTimeout, "AUTHKIT_REQUEST_TIMEOUT", &cfg.Backend.RequestTimeout},
		{s.LogoutTimeout, "AUTHKIT_LOGOUT_TIMEOUT", &cfg.Backend.LogoutTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.into = parsed
	}

	if s.MaxLoginAttempts > 0 {
		cfg.Limiter.MaxAttempts = s.MaxLoginAttempts
	}
	if s.AdminRole != "" {
		cfg.AdminRole = s.AdminRole
	}
	if s.AuditEnabled != nil {
		cfg.Audit.Enabled = *s.AuditEnabled
	}
	if s.MetricsEnabled != nil {
		cfg.Metrics.Enabled = *s.MetricsEnabled
	}
	return nil
}
