package authkit

import (
	"testing"
	"time"

	"github.com/ferrytech/authkit/ratelimit"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero request timeout", func(c *Config) { c.Backend.RequestTimeout = 0 }},
		{"negative logout timeout", func(c *Config) { c.Backend.LogoutTimeout = -time.Second }},
		{"negative max attempts", func(c *Config) { c.Limiter.MaxAttempts = -1 }},
		{"negative lockout window", func(c *Config) { c.Limiter.LockoutWindow = -time.Minute }},
		{"negative policy interval", func(c *Config) { c.Clock.PolicyInterval = -time.Second }},
		{"negative refresh threshold", func(c *Config) { c.Clock.RefreshThreshold = -time.Minute }},
		{"negative audit buffer", func(c *Config) { c.Audit.BufferSize = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate accepted invalid config")
			}
		})
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Limiter.MaxAttempts != ratelimit.DefaultMaxAttempts {
		t.Fatalf("MaxAttempts = %d, want default %d", cfg.Limiter.MaxAttempts, ratelimit.DefaultMaxAttempts)
	}
	if cfg.Backend.RequestTimeout != 15*time.Second {
		t.Fatalf("RequestTimeout = %v, want 15s", cfg.Backend.RequestTimeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTHKIT_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("AUTHKIT_LOCKOUT_WINDOW", "5m")
	t.Setenv("AUTHKIT_REQUEST_TIMEOUT", "2s")
	t.Setenv("AUTHKIT_ADMIN_ROLE", "superuser")
	t.Setenv("AUTHKIT_METRICS_ENABLED", "false")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Limiter.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.Limiter.MaxAttempts)
	}
	if cfg.Limiter.LockoutWindow != 5*time.Minute {
		t.Fatalf("LockoutWindow = %v, want 5m", cfg.Limiter.LockoutWindow)
	}
	if cfg.Backend.RequestTimeout != 2*time.Second {
		t.Fatalf("RequestTimeout = %v, want 2s", cfg.Backend.RequestTimeout)
	}
	if cfg.AdminRole != "superuser" {
		t.Fatalf("AdminRole = %q, want superuser", cfg.AdminRole)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("Metrics.Enabled = true, want overridden false")
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("AUTHKIT_REQUEST_TIMEOUT", "soon")

	if _, err := FromEnv(); err == nil {
		t.Fatal("FromEnv accepted unparseable duration")
	}
}
