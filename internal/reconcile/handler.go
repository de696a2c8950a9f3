package reconcile

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes reconciliation HTTP endpoints. It is a thin surface; all
// semantics live in Service.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a reconciliation HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type reconcileRequest struct {
	TriggeredBy string `json:"triggered_by"`
}

// ReconcileWallet triggers an on-demand reconciliation for one wallet.
func (h *Handler) ReconcileWallet(c *fiber.Ctx) error {
	partnerID := c.Params("partnerId")
	currency := c.Params("currency")

	var req reconcileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	report, err := h.service.ReconcileWallet(c.UserContext(), partnerID, currency, req.TriggeredBy)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(report)
}

// ReconcileAll triggers a full fleet sweep.
func (h *Handler) ReconcileAll(c *fiber.Ctx) error {
	summary, err := h.service.ReconcileAll(c.UserContext())
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(summary)
}

// History returns persisted reconciliation events.
func (h *Handler) History(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	events, err := h.service.History(c.UserContext(), c.Query("partner_id"), limit, offset)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"events": events,
		"total":  len(events),
	})
}

// Stats returns the fleet-level reconciliation statistics.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return h.mapError(c, err)
	}
	return c.Status(http.StatusOK).JSON(stats)
}

// mapError keeps store details out of responses: not-found and busy map to
// their statuses, everything else becomes a generic run failure while the
// cause is logged for operators.
func (h *Handler) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrWalletBusy):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		h.logger.Error("reconciliation request failed", "path", c.Path(), "error", err)
		return fiber.NewError(http.StatusInternalServerError, "reconciliation run failed")
	}
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
