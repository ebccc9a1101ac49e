package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks keys a CI runner might set; viper treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"APP_ENV", "PORT", "DB_DRIVER", "FINE_DAILY_RATE", "SESSION_TTL", "JWT_SECRET",
		"SWEEP_HOUR", "SWEEP_MINUTE", "SWEEP_TZ", "SWEEP_GRACE", "SWEEP_ENABLED", "BOOTSTRAP_ADMIN_EMAIL"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "3001" || cfg.DB.Driver != "postgres" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.FineDailyRate.StringFixed(2) != "5.00" {
		t.Fatalf("fine rate = %s", cfg.FineDailyRate)
	}
	if cfg.SessionTTL != 24*time.Hour || cfg.Sweep.Grace != 15*time.Minute {
		t.Fatalf("durations = %v / %v", cfg.SessionTTL, cfg.Sweep.Grace)
	}
	if cfg.Sweep.Hour != 8 || cfg.Sweep.Location != time.UTC {
		t.Fatalf("sweep = %+v", cfg.Sweep)
	}
	if cfg.JWTSecret == "" {
		t.Fatal("development should fall back to a dev secret")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FINE_DAILY_RATE", "2.50")
	t.Setenv("SWEEP_HOUR", "6")
	t.Setenv("SWEEP_ENABLED", "false")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "Admin@Example.EDU")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FineDailyRate.StringFixed(2) != "2.50" || cfg.Sweep.Hour != 6 || cfg.Sweep.Enabled {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DB.Driver != "mysql" {
		t.Fatalf("driver = %s", cfg.DB.Driver)
	}
	if cfg.Bootstrap.Email != "admin@example.edu" {
		t.Fatalf("bootstrap email = %s", cfg.Bootstrap.Email)
	}
}

func TestLoadReportsEveryInvalidKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("FINE_DAILY_RATE", "-1")
	t.Setenv("SWEEP_HOUR", "25")
	t.Setenv("SWEEP_TZ", "Mars/Olympus")
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	for _, key := range []string{"FINE_DAILY_RATE", "SWEEP_HOUR", "SWEEP_TZ", "DB_DRIVER"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("err = %v", err)
	}
}

func TestSMTPEnabled(t *testing.T) {
	if (SMTPConfig{}).Enabled() {
		t.Fatal("empty SMTP config reported enabled")
	}
	if !(SMTPConfig{Host: "smtp.example.edu", From: "noreply@example.edu"}).Enabled() {
		t.Fatal("configured SMTP reported disabled")
	}
}
