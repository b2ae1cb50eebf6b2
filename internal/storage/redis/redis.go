package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// RegisterFailedLogin bumps the failure counter for an email and keeps
// the key alive for the throttle window. Returns the new count.
func (r *RedisRepo) RegisterFailedLogin(ctx context.Context, email string, window time.Duration) (int64, error) {
	const op = "storage.redis.RegisterFailedLogin"

	key := attemptsKey(email)

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return incr.Val(), nil
}

// FailedLogins returns the current failure count for an email.
func (r *RedisRepo) FailedLogins(ctx context.Context, email string) (int64, error) {
	const op = "storage.redis.FailedLogins"

	count, err := r.client.Get(ctx, attemptsKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// ResetFailedLogins clears the counter after a successful login.
func (r *RedisRepo) ResetFailedLogins(ctx context.Context, email string) error {
	const op = "storage.redis.ResetFailedLogins"

	err := r.client.Del(ctx, attemptsKey(email)).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) Close() {
	r.client.Close()
}

func attemptsKey(email string) string {
	return fmt.Sprintf("login:attempts:%s", email)
}
