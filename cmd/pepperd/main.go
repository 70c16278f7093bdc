// pepperd is the operator-in-the-loop tracking controller daemon.
//
// It subscribes to the robot middleware's video and joint-state channels,
// runs perception through the external inference service, and drives the
// head joints through the upstream RPC shim while answering external
// tracking commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-pepper/internal/config"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/actuation"
	"github.com/teslashibe/go-pepper/pkg/bus"
	"github.com/teslashibe/go-pepper/pkg/orchestrator"
	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/robot"
	"github.com/teslashibe/go-pepper/pkg/state"
	"github.com/teslashibe/go-pepper/pkg/vision"
	"github.com/teslashibe/go-pepper/pkg/web"
)

func main() {
	configPath := flag.String("config", "config/pepper.toml", "path to the static config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	busCfg := bus.Config{
		VideoURI:      cfg.VideoURI,
		JointsURI:     cfg.JointsURI,
		PerceptionURI: cfg.PerceptionURI,
		CommandBind:   cfg.CommandBind,
	}
	if err := busCfg.Validate(); err != nil {
		logger.Error("invalid transport config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collaborators.
	stateBuffer := state.NewBuffer(0)
	stateReceiver := state.NewReceiver(stateBuffer, cfg.JointsURI, logger)

	percepClient, err := perception.NewClient(ctx, cfg.PerceptionURI, logger)
	if err != nil {
		logger.Error("perception client unavailable", "error", err)
		os.Exit(1)
	}

	robotCtrl := robot.NewHTTPController(cfg.RobotAddr)
	actuator := actuation.New(robotCtrl, 0, logger)

	// Core.
	orch := orchestrator.New(stateBuffer, percepClient, actuator, cfg.TuningPath, logger)
	videoReceiver := vision.NewReceiver(cfg.VideoURI, logger)
	listener := orchestrator.NewListener(cfg.CommandBind, orch, logger)
	dashboard := web.NewServer(cfg.WebPort, orch, logger)

	// Bring-up: telemetry first so the control loop has state to read.
	if err := stateReceiver.Start(ctx); err != nil {
		logger.Error("joint-state subscription failed", "error", err)
		os.Exit(1)
	}
	actuator.Start()
	orch.Start()
	if err := videoReceiver.Start(ctx, orch.HandleFrame); err != nil {
		logger.Error("video subscription failed", "error", err)
		os.Exit(1)
	}
	if err := listener.Start(ctx); err != nil {
		// External commands are optional; the core keeps running.
		logger.Error("external commands disabled", "error", err)
	}
	dashboard.Start()

	logger.Info("pepperd running",
		"video", cfg.VideoURI,
		"joints", cfg.JointsURI,
		"perception", cfg.PerceptionURI,
		"commands", cfg.CommandBind,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	// Teardown order: command intake first, sensors next, motion last.
	listener.Stop()
	videoReceiver.Stop()
	stateReceiver.Stop()
	percepClient.Close()
	actuator.Stop()
	orch.Stop()
	dashboard.Stop()
}
