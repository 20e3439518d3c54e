package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hostpulse/hostpulse/internal/handlers"
)

func Setup(
	app *fiber.App,
	systemHandler *handlers.SystemHandler,
	statusHandler *handlers.StatusHandler,
	hostHandler *handlers.HostHandler,
	agentHandler *handlers.AgentHandler,
	streamHandler *handlers.StreamHandler,
) {
	app.Get("/api/health", systemHandler.Health)
	app.Get("/api/overview", systemHandler.Overview)

	// Live status
	app.Get("/api/status/latest", statusHandler.Latest)
	app.Get("/api/status/insights", statusHandler.Insights)
	app.Get("/api/history", statusHandler.History)
	app.Get("/api/events", statusHandler.Events)

	// Hosts
	app.Get("/api/hosts", hostHandler.ListHosts)
	app.Post("/api/hosts", hostHandler.CreateHost)
	app.Get("/api/hosts/:id", hostHandler.GetHost)
	app.Put("/api/hosts/:id", hostHandler.UpdateHost)
	app.Delete("/api/hosts/:id", hostHandler.DeleteHost)
	app.Get("/api/hosts/:id/status", statusHandler.HostStatus)
	app.Get("/api/hosts/:id/checks", statusHandler.HostChecks)

	// Agent ingest
	app.Post("/api/agent/report", agentHandler.Report)

	// Stream (WebSocket)
	app.Use("/api/stream", streamHandler.UpgradeCheck())
	app.Get("/api/stream", streamHandler.HandleStream())
}
