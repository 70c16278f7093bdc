// Package web provides the operator dashboard for the tracking controller:
// a status endpoint, live tuning, and a websocket status stream.
package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pepper/pkg/hub"
	"github.com/teslashibe/go-pepper/pkg/orchestrator"
	"github.com/teslashibe/go-pepper/pkg/tracking"
)

// statusInterval is the websocket status broadcast period (~5 Hz).
const statusInterval = 200 * time.Millisecond

// TrackerControl is the orchestrator surface the dashboard drives.
type TrackerControl interface {
	Status() orchestrator.Status
	Tuning() tracking.TuningConfig
	ApplyTuning(cfg tracking.TuningConfig)
	SetTarget(label string)
}

// Server is the dashboard HTTP server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	control   TrackerControl
	statusHub *hub.Hub

	stop chan struct{}
}

// NewServer creates the dashboard server on the given port.
func NewServer(port string, control TrackerControl, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		port:      port,
		logger:    logger,
		control:   control,
		statusHub: hub.New("status", logger),
		stop:      make(chan struct{}),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(cors.New())

	api := s.app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/tuning", s.handleGetTuning)
	api.Post("/tuning", s.handleSetTuning)
	api.Post("/track", s.handleTrack)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/status", websocket.New(func(conn *websocket.Conn) {
		client := hub.NewClient(s.statusHub, conn)
		client.Run()
	}))
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.control.Status())
}

func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	return c.JSON(s.control.Tuning())
}

// handleSetTuning applies a tuning document live. Fields omitted from the
// request body keep their current values.
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	cfg := s.control.Tuning()
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
		})
	}
	s.control.ApplyTuning(cfg)
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleTrack mirrors the external command channel for browser clients.
func (s *Server) handleTrack(c *fiber.Ctx) error {
	var req struct {
		Target string `json:"target"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
		})
	}
	s.control.SetTarget(req.Target)
	return c.JSON(fiber.Map{"status": "ok", "target": req.Target})
}

// Start launches the hub, the status broadcaster, and the HTTP listener.
func (s *Server) Start() {
	go s.statusHub.Run()
	go s.broadcastLoop()

	go func() {
		if err := s.app.Listen(":" + s.port); err != nil {
			s.logger.Error("dashboard listener failed", "error", err)
		}
	}()
	s.logger.Info("dashboard started", "port", s.port)
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	close(s.stop)
	return s.app.Shutdown()
}

// broadcastLoop pushes status snapshots to websocket clients.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.control.Status()); err != nil {
				s.logger.Warn("status broadcast failed", "error", err)
			}
		}
	}
}
