package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/state"
	"gorm.io/gorm"
)

// Version is the hostpulse release version.
const Version = "0.3.0"

type SystemHandler struct {
	db        *gorm.DB
	table     *state.Table
	startedAt time.Time
}

func NewSystemHandler(db *gorm.DB, table *state.Table) *SystemHandler {
	return &SystemHandler{db: db, table: table, startedAt: time.Now()}
}

// Health reports liveness plus the state of the durable store.
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	dbStatus := "disabled"
	if h.db != nil {
		dbStatus = "up"
		if sqlDB, err := h.db.DB(); err != nil {
			dbStatus = "down"
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "down"
		}
	}

	return c.JSON(fiber.Map{
		"status":         "ok",
		"database":       dbStatus,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"version":        h.table.Version(),
	})
}

// Overview returns the full point-in-time view: every latest sample,
// insight, check result, and host aggregate.
func (h *SystemHandler) Overview(c *fiber.Ctx) error {
	ov := h.table.Snapshot()

	var hostCount int64
	if h.db != nil {
		h.db.Model(&models.Host{}).Where("is_active = ?", true).Count(&hostCount)
	}

	return c.JSON(fiber.Map{
		"overview":     ov,
		"active_hosts": hostCount,
	})
}
