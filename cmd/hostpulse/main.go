package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hostpulse/hostpulse/internal/agent"
	"github.com/hostpulse/hostpulse/internal/config"
	"github.com/hostpulse/hostpulse/internal/database"
	"github.com/hostpulse/hostpulse/internal/events"
	"github.com/hostpulse/hostpulse/internal/handlers"
	"github.com/hostpulse/hostpulse/internal/history"
	"github.com/hostpulse/hostpulse/internal/hub"
	"github.com/hostpulse/hostpulse/internal/insight"
	"github.com/hostpulse/hostpulse/internal/probe"
	"github.com/hostpulse/hostpulse/internal/routes"
	"github.com/hostpulse/hostpulse/internal/sampler"
	"github.com/hostpulse/hostpulse/internal/state"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:   "hostpulse",
		Short: "Host and metrics health monitor",
	}
	root.AddCommand(serveCmd(logger), agentCmd(logger))

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the hostpulse collector and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logger)
		},
	}
}

func agentCmd(logger *slog.Logger) *cobra.Command {
	var collectorURL, hostID string
	var intervalSeconds int

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the push agent reporting local samples to a collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, id, interval := resolveAgentOptions(config.Load(), collectorURL, hostID, intervalSeconds)
			a, err := agent.New(url, id, interval, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&collectorURL, "collector", "", "collector base URL (overrides PULSE_COLLECTOR_URL)")
	cmd.Flags().StringVar(&hostID, "host-id", "", "host ID to report as (overrides PULSE_AGENT_HOST_ID)")
	cmd.Flags().IntVar(&intervalSeconds, "interval", 0, "sample interval in seconds (overrides PULSE_SAMPLE_INTERVAL)")
	return cmd
}

// resolveAgentOptions applies flag values over the env config. Flags win
// when set.
func resolveAgentOptions(cfg *config.Config, collectorURL, hostID string, intervalSeconds int) (string, string, time.Duration) {
	if collectorURL == "" {
		collectorURL = cfg.CollectorURL
	}
	if hostID == "" {
		hostID = cfg.AgentHostID
	}
	interval := cfg.SampleInterval()
	if intervalSeconds > 0 {
		interval = time.Duration(intervalSeconds) * time.Second
	}
	return collectorURL, hostID, interval
}

func runServe(logger *slog.Logger) error {
	slog.Info("Starting hostpulse", "version", handlers.Version)

	cfg := config.Load()

	// ─── Database ────────────────────────────────────────────────────────
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	// The storage toggle controls only the durable sample mirror; the host
	// registry and event log always persist.
	var sampleDB *gorm.DB = db
	if !cfg.StorageEnabled {
		sampleDB = nil
		slog.Warn("Durable sample storage disabled, metric history is in-memory only")
	}

	// ─── Core pipeline ──────────────────────────────────────────────────
	table := state.NewTable()
	store := history.NewStore(sampleDB, cfg.HistoryPoints, cfg.Retention(), logger)
	detector := insight.NewDetector(cfg.AnomalyWindow(), cfg.AnomalyZThreshold)
	h := hub.NewHub(table, logger)

	agg := events.NewAggregator(db, 0, logger)
	agg.OnEvent(h.BroadcastEvent)

	smp := sampler.New(cfg.SampleInterval(), store, detector, table, h, logger)
	checker := probe.NewChecker(db, table, agg, cfg, logger)
	checker.OnCycle(h.BroadcastStatus)

	store.Start()
	smp.Start()
	checker.Start()

	// ─── Handlers ───────────────────────────────────────────────────────
	systemHandler := handlers.NewSystemHandler(db, table)
	statusHandler := handlers.NewStatusHandler(table, store, agg)
	hostHandler := handlers.NewHostHandler(db, checker, smp)
	agentHandler := handlers.NewAgentHandler(db, smp)
	streamHandler := handlers.NewStreamHandler(h, logger)

	// ─── Fiber App ──────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      "hostpulse v" + handlers.Version,
		ServerHeader: "hostpulse",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Request logger
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/api/health" {
			return err
		}
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	})

	routes.Setup(app, systemHandler, statusHandler, hostHandler, agentHandler, streamHandler)

	// ─── Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down hostpulse...")

		checker.Stop()
		smp.Stop()
		store.Stop()

		if err := app.Shutdown(); err != nil {
			slog.Error("Fiber shutdown error", "error", err)
		}

		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	slog.Info("hostpulse listening", "addr", cfg.Addr)
	return app.Listen(cfg.Addr)
}
