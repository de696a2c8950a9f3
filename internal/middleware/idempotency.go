package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// IdempotencyHeader opts a request into replay protection.
const IdempotencyHeader = "Idempotency-Key"

const (
	idempotencyKeyspace = "reconcile:idem:"
	pendingMarker       = "pending"
	storeTimeout        = 2 * time.Second
)

// replayEntry is the response captured for a completed trigger.
type replayEntry struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Idempotency makes reconciliation triggers safe to retry. A request carrying
// an Idempotency-Key reserves the key before the trigger runs; a retry of a
// completed trigger replays the stored response instead of starting another
// sweep, and a retry of an in-flight trigger is rejected. Safe methods and
// requests without the header pass through.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		key := c.Get(IdempotencyHeader)
		if key == "" {
			return c.Next()
		}
		storeKey := idempotencyKeyspace + key

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		reserved, err := cache.SetNX(ctx, storeKey, pendingMarker, ttl).Result()
		if err != nil {
			logger.Error("idempotency reservation failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store unavailable")
		}
		if !reserved {
			stored, err := cache.Get(ctx, storeKey).Result()
			if err != nil {
				logger.Error("idempotency lookup failed", "key", key, "error", err)
				return fiber.NewError(fiber.StatusInternalServerError, "idempotency store unavailable")
			}
			if stored == pendingMarker {
				return fiber.NewError(fiber.StatusConflict, "reconciliation trigger already in flight")
			}
			var entry replayEntry
			if err := json.Unmarshal([]byte(stored), &entry); err != nil {
				logger.Warn("stored idempotent response unreadable", "key", key, "error", err)
				return fiber.NewError(fiber.StatusConflict, "duplicate reconciliation trigger")
			}
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(entry.Status).Send(entry.Body)
		}

		if err := c.Next(); err != nil {
			// A failed trigger must stay retryable.
			releaseKey(cache, storeKey)
			return err
		}

		entry := replayEntry{
			Status: c.Response().StatusCode(),
			Body:   append([]byte(nil), c.Response().Body()...),
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			logger.Error("encode idempotent response", "key", key, "error", err)
			releaseKey(cache, storeKey)
			return nil
		}
		persistCtx, cancelPersist := context.WithTimeout(context.Background(), storeTimeout)
		defer cancelPersist()
		if err := cache.Set(persistCtx, storeKey, payload, ttl).Err(); err != nil {
			logger.Warn("persist idempotent response", "key", key, "error", err)
		}
		return nil
	}
}

func releaseKey(cache *redis.Client, storeKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	cache.Del(ctx, storeKey)
}
