package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	allowedValue = "1"
	deniedValue  = "0"
)

// Redis keeps decisions in Redis so that several instances share invalidation
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// NewRedisClient creates a client and checks the connection
func NewRedisClient(ctx context.Context, address, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (r *Redis) Get(ctx context.Context, videoID, viewerID int64) (bool, bool, error) {
	data, err := r.client.Get(ctx, Key(videoID, viewerID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("get decision: %w", err)
	}

	return data == allowedValue, true, nil
}

func (r *Redis) Set(ctx context.Context, videoID, viewerID int64, allowed bool, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	value := deniedValue
	if allowed {
		value = allowedValue
	}

	if err := r.client.Set(ctx, Key(videoID, viewerID), value, ttl).Err(); err != nil {
		return fmt.Errorf("set decision: %w", err)
	}

	return nil
}

func (r *Redis) Invalidate(ctx context.Context, videoID int64, viewerIDs ...int64) error {
	if len(viewerIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(viewerIDs))
	for _, viewerID := range viewerIDs {
		keys = append(keys, Key(videoID, viewerID))
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete decisions: %w", err)
	}

	return nil
}
