package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/deskhive/reconciler/internal/config"
	"github.com/deskhive/reconciler/internal/middleware"
	"github.com/deskhive/reconciler/internal/reconcile"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	Service *reconcile.Service
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLog(d.Logger))

	RegisterHealthRoutes(app, d)

	handler := reconcile.NewHandler(d.Service, d.Logger)

	api := app.Group("/api/v1")
	if d.Cache != nil {
		// Reconciliation triggers are unsafe operations; retried requests
		// replay the stored response instead of starting another run.
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterReconciliationRoutes(api, handler)

	return nil
}
