package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/chillserv/fieldops/internal/config"
)

const keyBookingCreate = "booking:create:%s"

// Per-customer creation budget: a burst of five bookings, refilling one
// per minute.
const (
	bookingCreateRate  = 1.0 / 60
	bookingCreateBurst = 5
)

// BookingCreateLimiter throttles booking creation per customer email.
// A nil limiter is valid and allows everything, so deployments without
// redis run unthrottled.
type BookingCreateLimiter struct {
	bucket *TokenBucket
}

func NewBookingCreateLimiter(cfg config.Config) *BookingCreateLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	return &BookingCreateLimiter{bucket: NewTokenBucket(client)}
}

func (l *BookingCreateLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow reports whether the customer may create another booking and, on
// refusal, how long to wait. Redis errors fail open: a broken limiter
// must not take booking creation down with it.
func (l *BookingCreateLimiter) Allow(ctx context.Context, customerEmail string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	key := fmt.Sprintf(keyBookingCreate, strings.ToLower(strings.TrimSpace(customerEmail)))
	res, err := l.bucket.Allow(ctx, key, bookingCreateRate, bookingCreateBurst)
	if err != nil {
		return true, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}
