package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hostpulse/hostpulse/internal/config"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/probe"
	"github.com/hostpulse/hostpulse/internal/sampler"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type HostHandler struct {
	db      *gorm.DB
	checker *probe.Checker
	sampler *sampler.Sampler
}

func NewHostHandler(db *gorm.DB, checker *probe.Checker, smp *sampler.Sampler) *HostHandler {
	return &HostHandler{db: db, checker: checker, sampler: smp}
}

type hostRequest struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Type      string   `json:"type"`
	Tags      []string `json:"tags"`
	Notes     string   `json:"notes"`
	IsActive  *bool    `json:"is_active"`
	Protocols []string `json:"protocols"`
}

func validProtocols(protocols []string) bool {
	for _, p := range protocols {
		known := false
		for _, k := range config.Protocols {
			if p == k {
				known = true
				break
			}
		}
		if !known {
			return false
		}
	}
	return true
}

// ListHosts returns all monitored hosts.
func (h *HostHandler) ListHosts(c *fiber.Ctx) error {
	var hosts []models.Host
	if err := h.db.Order("created_at DESC").Find(&hosts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list hosts",
		})
	}
	return c.JSON(fiber.Map{"hosts": hosts})
}

// CreateHost registers a new host for monitoring.
func (h *HostHandler) CreateHost(c *fiber.Ctx) error {
	var req hostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	if req.Name == "" || req.Address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Name and address are required",
		})
	}
	if !validProtocols(req.Protocols) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown protocol in protocols list",
		})
	}

	host := models.Host{
		Name:     req.Name,
		Address:  req.Address,
		Type:     req.Type,
		Notes:    req.Notes,
		IsActive: true,
	}
	if req.IsActive != nil {
		host.IsActive = *req.IsActive
	}
	if len(req.Tags) > 0 {
		if b, err := json.Marshal(req.Tags); err == nil {
			host.Tags = datatypes.JSON(b)
		}
	}
	if len(req.Protocols) > 0 {
		if b, err := json.Marshal(req.Protocols); err == nil {
			host.Protocols = datatypes.JSON(b)
		}
	}

	if err := h.db.Create(&host).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create host",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(host)
}

// GetHost returns a single host.
func (h *HostHandler) GetHost(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid host ID",
		})
	}

	var host models.Host
	if err := h.db.First(&host, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Host not found",
		})
	}
	return c.JSON(host)
}

// UpdateHost modifies an existing host.
func (h *HostHandler) UpdateHost(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid host ID",
		})
	}

	var host models.Host
	if err := h.db.First(&host, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Host not found",
		})
	}

	var req hostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if !validProtocols(req.Protocols) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown protocol in protocols list",
		})
	}

	if req.Name != "" {
		host.Name = req.Name
	}
	if req.Address != "" {
		host.Address = req.Address
	}
	if req.Type != "" {
		host.Type = req.Type
	}
	if req.Notes != "" {
		host.Notes = req.Notes
	}
	if req.IsActive != nil {
		host.IsActive = *req.IsActive
	}
	if req.Tags != nil {
		if b, err := json.Marshal(req.Tags); err == nil {
			host.Tags = datatypes.JSON(b)
		}
	}
	if req.Protocols != nil {
		if b, err := json.Marshal(req.Protocols); err == nil {
			host.Protocols = datatypes.JSON(b)
		}
	}

	if err := h.db.Save(&host).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update host",
		})
	}
	return c.JSON(host)
}

// DeleteHost removes a host and everything derived from it: live status,
// check results, metric history, and its events.
func (h *HostHandler) DeleteHost(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid host ID",
		})
	}

	var host models.Host
	if err := h.db.First(&host, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Host not found",
		})
	}

	if err := h.db.Delete(&host).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to delete host",
		})
	}

	h.checker.DropHost(id)
	h.sampler.DropTarget(id.String())

	return c.JSON(fiber.Map{"message": "Host deleted"})
}
