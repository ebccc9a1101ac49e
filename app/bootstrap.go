package app

import (
	"context"

	"Gin_postgres_redis_loan_tracker/services"
)

// BootstrapFirstAdmin 没有管理员且配置了 BOOTSTRAP_ADMIN_* 时创建第一个管理员
func (a *App) BootstrapFirstAdmin(ctx context.Context) {
	b := a.Config.Bootstrap
	if !b.Enabled() {
		return
	}
	u, created, err := a.Auth.BootstrapAdmin(ctx, services.RegisterParams{
		Username: b.Username,
		Email:    b.Email,
		Password: b.Password,
	})
	switch {
	case err != nil:
		a.Logger.Error("bootstrap admin failed", "error", err)
	case created:
		a.Logger.Info("bootstrap admin created", "user_id", u.ID, "username", u.Username)
	default:
		a.Logger.Debug("admin exists, bootstrap skipped")
	}
}
