package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/sampler"
	"gorm.io/gorm"
)

type AgentHandler struct {
	db      *gorm.DB
	sampler *sampler.Sampler
}

func NewAgentHandler(db *gorm.DB, smp *sampler.Sampler) *AgentHandler {
	return &AgentHandler{db: db, sampler: smp}
}

// Report ingests one sample pushed by a remote agent. The sample's target
// must name a registered, active host; stale timestamps are rejected so a
// delayed retry can never rewind live state.
func (h *AgentHandler) Report(c *fiber.Ctx) error {
	var sample models.Sample
	if err := c.BodyParser(&sample); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid sample body",
		})
	}
	if sample.Target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Sample target is required",
		})
	}

	if sample.Target != models.SystemTarget {
		id, err := uuid.Parse(sample.Target)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   true,
				"message": "Sample target must be a host ID",
			})
		}
		var host models.Host
		if err := h.db.First(&host, "id = ?", id).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   true,
				"message": "Unknown host",
			})
		}
		if !host.IsActive {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   true,
				"message": "Host is inactive",
			})
		}
	}

	if err := h.sampler.Ingest(&sample); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   true,
			"message": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Sample accepted"})
}
