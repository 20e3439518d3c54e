package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hostpulse/hostpulse/internal/events"
	"github.com/hostpulse/hostpulse/internal/history"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/state"
)

type StatusHandler struct {
	table *state.Table
	store *history.Store
	agg   *events.Aggregator
}

func NewStatusHandler(table *state.Table, store *history.Store, agg *events.Aggregator) *StatusHandler {
	return &StatusHandler{table: table, store: store, agg: agg}
}

// Latest returns the newest sample for a target (the local system by
// default).
func (h *StatusHandler) Latest(c *fiber.Ctx) error {
	target := c.Query("target", models.SystemTarget)
	sample := h.table.Latest(target)
	if sample == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "No sample for target",
		})
	}
	return c.JSON(sample)
}

// Insights returns the current anomaly insight for a target.
func (h *StatusHandler) Insights(c *fiber.Ctx) error {
	target := c.Query("target", models.SystemTarget)
	in, ok := h.table.Insight(target)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "No insight for target",
		})
	}
	return c.JSON(in)
}

// HostStatus returns the reachability aggregate for one host.
func (h *StatusHandler) HostStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid host ID",
		})
	}

	hs, found := h.table.HostStatus(id.String())
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "No status for host yet",
		})
	}
	return c.JSON(hs)
}

// HostChecks returns every per-protocol check result for one host.
func (h *StatusHandler) HostChecks(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid host ID",
		})
	}
	return c.JSON(fiber.Map{"checks": h.table.Checks(id.String())})
}

// History returns the in-memory window of one target/metric series, oldest
// first.
func (h *StatusHandler) History(c *fiber.Ctx) error {
	target := c.Query("target", models.SystemTarget)
	metric := c.Query("metric", models.MetricCPUPercent)
	limit, _ := strconv.Atoi(c.Query("limit", "0"))

	points := h.store.History(target, metric, limit)
	return c.JSON(fiber.Map{
		"target": target,
		"metric": metric,
		"points": points,
	})
}

// Events returns recent transition events, newest first.
func (h *StatusHandler) Events(c *fiber.Ctx) error {
	f := events.Filter{}

	if raw := c.Query("host_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid host ID",
			})
		}
		f.HostID = &id
	}
	if raw := c.Query("level"); raw != "" {
		f.Level = models.EventLevel(raw)
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}

	return c.JSON(fiber.Map{"events": h.agg.Recent(f)})
}
