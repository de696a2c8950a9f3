package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/deskhive/reconciler/internal/logging"
)

func setupCache(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func triggerRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/reconciliation/run", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestIdempotencyReplaysCompletedTrigger(t *testing.T) {
	cache := setupCache(t)

	runs := 0
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/reconciliation/run", func(c *fiber.Ctx) error {
		runs++
		return c.Status(http.StatusOK).JSON(fiber.Map{"runs": runs})
	})

	first, err := app.Test(triggerRequest("sweep-1"))
	if err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if first.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.StatusCode)
	}
	firstBody, _ := io.ReadAll(first.Body)

	second, err := app.Test(triggerRequest("sweep-1"))
	if err != nil {
		t.Fatalf("retried trigger: %v", err)
	}
	secondBody, _ := io.ReadAll(second.Body)

	if runs != 1 {
		t.Fatalf("retry must not start another run, ran %d times", runs)
	}
	if second.StatusCode != http.StatusOK || string(secondBody) != string(firstBody) {
		t.Fatalf("expected replayed response %q, got %d %q", firstBody, second.StatusCode, secondBody)
	}
}

func TestIdempotencyRejectsInFlightTrigger(t *testing.T) {
	cache := setupCache(t)

	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/reconciliation/run", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	// Another process holds the reservation.
	if err := cache.Set(context.Background(), idempotencyKeyspace+"sweep-2", pendingMarker, time.Minute).Err(); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	resp, err := app.Test(triggerRequest("sweep-2"))
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for in-flight trigger, got %d", resp.StatusCode)
	}
}

func TestIdempotencyReleasesKeyOnHandlerFailure(t *testing.T) {
	cache := setupCache(t)

	attempts := 0
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/reconciliation/run", func(c *fiber.Ctx) error {
		attempts++
		if attempts == 1 {
			return fiber.NewError(http.StatusInternalServerError, "sweep failed")
		}
		return c.SendStatus(http.StatusOK)
	})

	first, err := app.Test(triggerRequest("sweep-3"))
	if err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if first.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", first.StatusCode)
	}

	// A failed trigger did not burn the key; the retry runs for real.
	second, err := app.Test(triggerRequest("sweep-3"))
	if err != nil {
		t.Fatalf("retried trigger: %v", err)
	}
	if second.StatusCode != http.StatusOK || attempts != 2 {
		t.Fatalf("expected retry to run, got status %d after %d attempts", second.StatusCode, attempts)
	}
}

func TestIdempotencyIgnoresRequestsWithoutKey(t *testing.T) {
	cache := setupCache(t)

	runs := 0
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/reconciliation/run", func(c *fiber.Ctx) error {
		runs++
		return c.SendStatus(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(triggerRequest(""))
		if err != nil {
			t.Fatalf("trigger %d: %v", i, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("trigger %d: expected 200, got %d", i, resp.StatusCode)
		}
	}
	if runs != 2 {
		t.Fatalf("requests without a key must each run, ran %d times", runs)
	}
}
