package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ridloal/e-commerce-go-checkout/internal/platform/config"
)

const (
	// Dedup notifikasi gateway: dedup:notify:{method}:{key}
	KeyNotifyDedup = "dedup:notify:%s:%s"
)

var TTLNotifyDedup = 48 * time.Hour

func New(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb redis.Cmdable, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// NotificationGuard menandai notifikasi yang sudah diproses supaya retry dari gateway
// bisa dijawab tanpa menyentuh database. Database tetap sumber kebenaran.
type NotificationGuard struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewNotificationGuard(rdb redis.Cmdable) *NotificationGuard {
	return &NotificationGuard{rdb: rdb, ttl: TTLNotifyDedup}
}

func (g *NotificationGuard) key(method, id string) string {
	return fmt.Sprintf(KeyNotifyDedup, method, id)
}

func (g *NotificationGuard) Seen(ctx context.Context, method, id string) (bool, error) {
	return Exists(ctx, g.rdb, g.key(method, id))
}

func (g *NotificationGuard) Remember(ctx context.Context, method, id string) error {
	return g.rdb.Set(ctx, g.key(method, id), "1", g.ttl).Err()
}
