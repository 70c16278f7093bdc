// Package config provides process configuration for go-pepper commands.
//
// Static configuration (endpoint URIs, robot address, web port) is loaded
// from a TOML file and can be overridden per-field with PEPPER_* environment
// variables. The live tuning file is separate and owned by pkg/tracking.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the static process configuration.
type Config struct {
	// Transport endpoints (ZeroMQ URIs).
	VideoURI      string `toml:"video_uri"`
	JointsURI     string `toml:"joints_uri"`
	PerceptionURI string `toml:"perception_uri"`
	CommandBind   string `toml:"command_bind"`

	// Upstream robot RPC shim.
	RobotAddr string `toml:"robot_addr"`

	// Operator dashboard.
	WebPort string `toml:"web_port"`

	// Path of the hot-reloaded tuning JSON document.
	TuningPath string `toml:"tuning_path"`

	// Logging level: debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		VideoURI:      "tcp://localhost:5559",
		JointsURI:     "tcp://localhost:5560",
		PerceptionURI: "tcp://localhost:5557",
		CommandBind:   "tcp://*:5561",
		RobotAddr:     "localhost:9559",
		WebPort:       "8090",
		TuningPath:    "config/tuning.json",
		LogLevel:      "info",
	}
}

// Load reads the TOML file at path and applies environment overrides.
// A missing file is not an error; defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg.VideoURI, "PEPPER_VIDEO_URI")
	applyEnv(&cfg.JointsURI, "PEPPER_JOINTS_URI")
	applyEnv(&cfg.PerceptionURI, "PEPPER_PERCEPTION_URI")
	applyEnv(&cfg.CommandBind, "PEPPER_COMMAND_BIND")
	applyEnv(&cfg.RobotAddr, "PEPPER_ROBOT_ADDR")
	applyEnv(&cfg.WebPort, "PEPPER_WEB_PORT")
	applyEnv(&cfg.TuningPath, "PEPPER_TUNING_PATH")
	applyEnv(&cfg.LogLevel, "PEPPER_LOG_LEVEL")

	return cfg, nil
}

func applyEnv(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}
