package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 从环境变量（以及可选的 .env）读取
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DB    DBConfig
	Redis RedisConfig

	WebOrigin  string
	SessionTTL time.Duration
	JWTSecret  string
	TokenTTL   time.Duration

	SMTP  SMTPConfig
	AMQP  AMQPConfig
	Sweep SweepConfig

	FineDailyRate decimal.Decimal

	Bootstrap BootstrapAdmin
}

type DBConfig struct {
	Driver          string // postgres | mysql
	DSN             string // 非空时优先于 Host/User/...
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	AppName  string
}

// Enabled 未配置 SMTP 时走开发模式（只打日志）
func (s SMTPConfig) Enabled() bool { return s.Host != "" && (s.Username != "" || s.From != "") }

type AMQPConfig struct {
	URL   string
	Queue string
}

type SweepConfig struct {
	Enabled  bool
	Hour     int
	Minute   int
	Grace    time.Duration
	Location *time.Location
	LockTTL  time.Duration
}

type BootstrapAdmin struct {
	Username string
	Email    string
	Password string
}

func (b BootstrapAdmin) Enabled() bool { return b.Username != "" && b.Email != "" && b.Password != "" }

// LoadEnv loads .env when present; a missing file is not an error.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env loaded: %v", err)
	}
}

// Load reads configuration from the environment. Every invalid key is
// reported in one error.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var invalid []string

	rate, err := decimal.NewFromString(v.GetString("FINE_DAILY_RATE"))
	if err != nil || rate.IsNegative() {
		invalid = append(invalid, "FINE_DAILY_RATE")
	}

	loc, err := time.LoadLocation(v.GetString("SWEEP_TZ"))
	if err != nil {
		invalid = append(invalid, "SWEEP_TZ")
		loc = time.UTC
	}

	hour, minute := v.GetInt("SWEEP_HOUR"), v.GetInt("SWEEP_MINUTE")
	if hour < 0 || hour > 23 {
		invalid = append(invalid, "SWEEP_HOUR")
	}
	if minute < 0 || minute > 59 {
		invalid = append(invalid, "SWEEP_MINUTE")
	}

	driver := strings.ToLower(v.GetString("DB_DRIVER"))
	if driver != "postgres" && driver != "mysql" {
		invalid = append(invalid, "DB_DRIVER")
	}

	cfg := Config{
		Env:      v.GetString("APP_ENV"),
		Port:     v.GetString("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		DB: DBConfig{
			Driver:          driver,
			DSN:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			LogLevel:        v.GetString("DB_LOG_LEVEL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		WebOrigin:  v.GetString("WEB_ORIGIN"),
		SessionTTL: v.GetDuration("SESSION_TTL"),
		JWTSecret:  v.GetString("JWT_SECRET"),
		TokenTTL:   v.GetDuration("TOKEN_TTL"),
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(v.GetString("SMTP_HOST")),
			Port:     v.GetString("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
			AppName:  v.GetString("APP_NAME"),
		},
		AMQP: AMQPConfig{
			URL:   v.GetString("AMQP_URL"),
			Queue: v.GetString("AMQP_QUEUE"),
		},
		Sweep: SweepConfig{
			Enabled:  v.GetBool("SWEEP_ENABLED"),
			Hour:     hour,
			Minute:   minute,
			Grace:    v.GetDuration("SWEEP_GRACE"),
			Location: loc,
			LockTTL:  v.GetDuration("SWEEP_LOCK_TTL"),
		},
		FineDailyRate: rate,
		Bootstrap: BootstrapAdmin{
			Username: v.GetString("BOOTSTRAP_ADMIN_USERNAME"),
			Email:    strings.ToLower(v.GetString("BOOTSTRAP_ADMIN_EMAIL")),
			Password: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
		},
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			invalid = append(invalid, "JWT_SECRET")
		} else {
			cfg.JWTSecret = "dev-secret-change-me"
		}
	}
	if cfg.SessionTTL <= 0 {
		invalid = append(invalid, "SESSION_TTL")
	}
	if cfg.Sweep.Grace < 0 {
		invalid = append(invalid, "SWEEP_GRACE")
	}

	if len(invalid) > 0 {
		return cfg, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(invalid, ", "))
	}
	return cfg, nil
}

var ErrInvalidConfig = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "3001")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "equipment_loans")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_LOG_LEVEL", "warn")

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("WEB_ORIGIN", "http://localhost:5173")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("TOKEN_TTL", "12h")

	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_FROM", "noreply@equipmentloan.com")
	v.SetDefault("APP_NAME", "Equipment Loan Tracker")

	v.SetDefault("AMQP_QUEUE", "loan.events")

	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_HOUR", 8)
	v.SetDefault("SWEEP_MINUTE", 0)
	v.SetDefault("SWEEP_GRACE", "15m")
	v.SetDefault("SWEEP_TZ", "UTC")
	v.SetDefault("SWEEP_LOCK_TTL", "26h")

	v.SetDefault("FINE_DAILY_RATE", "5.00")
}
