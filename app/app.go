package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"Gin_postgres_redis_loan_tracker/audit"
	"Gin_postgres_redis_loan_tracker/config"
	"Gin_postgres_redis_loan_tracker/db"
	"Gin_postgres_redis_loan_tracker/events"
	"Gin_postgres_redis_loan_tracker/notify"
	"Gin_postgres_redis_loan_tracker/services"
	"Gin_postgres_redis_loan_tracker/session"
	"Gin_postgres_redis_loan_tracker/sweep"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	Config config.Config
	Logger *slog.Logger

	Repo     *db.Repo
	Sessions *session.AppSessionStore
	Tokens   *session.Tokens
	Audit    *audit.Recorder

	Loans        *services.Loans
	Reservations *services.Reservations
	Damage       *services.Damage
	Directory    *services.Directory
	Auth         *services.Auth
	Reports      *services.Reports

	Sweep     *sweep.Job
	Scheduler *sweep.Scheduler
}

// NewLogger builds the JSON logger used everywhere.
func NewLogger(level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// --- DB ---
	dbConn, err := db.ConnectDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	repo := db.NewRepo(dbConn)
	recorder := audit.NewRecorder(repo, logger.With("component", "audit"))
	dispatcher := notify.NewDispatcher(notify.NewMailer(cfg.SMTP, logger), repo, time.Now, logger.With("component", "notify"))
	publisher := events.New(cfg.AMQP.URL, cfg.AMQP.Queue, logger.With("component", "events"))
	appSess := session.NewAppSessionStore(rdb, cfg.SessionTTL)

	loans := services.NewLoans(services.LoanDeps{
		Store:     repo,
		Notifier:  dispatcher,
		Auditor:   recorder,
		Events:    publisher,
		Now:       time.Now,
		DailyFine: cfg.FineDailyRate,
		Logger:    logger,
	})

	a := &App{
		DB:       dbConn,
		RDB:      rdb,
		Config:   cfg,
		Logger:   logger,
		Repo:     repo,
		Sessions: appSess,
		Tokens:   session.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Audit:    recorder,

		Loans:        loans,
		Reservations: services.NewReservations(repo, recorder, time.Now, logger),
		Damage:       services.NewDamage(repo, recorder, time.Now, logger),
		Directory:    services.NewDirectory(repo, recorder, logger),
		Auth:         services.NewAuth(repo, appSess, recorder, logger),
		Reports:      services.NewReports(repo, loans, time.Now),
	}

	loc := cfg.Sweep.Location
	a.Sweep = sweep.New(loans, dispatcher, sweep.NewRedisLocker(rdb, cfg.Sweep.LockTTL, loc), time.Now, logger)
	a.Scheduler = sweep.NewScheduler(loc, time.Now, logger)
	if cfg.Sweep.Enabled {
		err := a.Scheduler.RegisterDaily("overdue_sweep", cfg.Sweep.Hour, cfg.Sweep.Minute, cfg.Sweep.Grace, func(ctx context.Context) {
			if _, err := a.Sweep.Run(ctx); err != nil && !errors.Is(err, sweep.ErrLocked) {
				logger.Error("overdue sweep failed", "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
	}

	// --- Gin ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))
	useCORS(r, cfg.WebOrigin)
	registerValidators(logger)
	a.Router = r
	return a, nil
}

func MustNew(cfg config.Config, logger *slog.Logger) *App {
	a, err := New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	return a
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
