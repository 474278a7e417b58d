package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the console's one redis connection pool. session.RedisStore keeps
// signed-in staff sessions in it and queue.RedisQueue carries check-in visit
// events from the console to the worker.
type Redis struct {
	Client *redis.Client
}

// NewRedis returns a pool for addr without dialing; the first command
// connects. ReadTimeout stays above the queue's 5s BRPOP so a blocking pop
// on an empty list ends with redis.Nil, not a timeout.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  6 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy pings redis for /healthz. A nil Redis is unhealthy.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the pool on shutdown.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
