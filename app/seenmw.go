package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type SeenToucher interface {
	TouchUserSeen(ctx context.Context, userID string) error
}

// TouchLastSeen 节流更新 last_seen_at：每个用户每个 throttle 周期最多写一次库
func TouchLastSeen(users SeenToucher, rdb *redis.Client, throttle time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "loan:lastseen:" + uid
		if ok, err := rdb.SetNX(ctx, key, "1", throttle).Result(); err == nil && ok {
			if err := users.TouchUserSeen(ctx, uid); err != nil {
				logger.Debug("touch last seen", "user_id", uid, "error", err) // 不阻塞请求
			}
		}
		c.Next()
	}
}
