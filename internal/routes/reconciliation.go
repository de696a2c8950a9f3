package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskhive/reconciler/internal/reconcile"
)

// RegisterReconciliationRoutes wires the reconciliation endpoints.
func RegisterReconciliationRoutes(r fiber.Router, h *reconcile.Handler) {
	r.Post("/reconciliation/run", h.ReconcileAll)
	r.Post("/reconciliation/wallets/:partnerId/:currency", h.ReconcileWallet)
	r.Get("/reconciliation/history", h.History)
	r.Get("/reconciliation/stats", h.Stats)
}
