package tracking

import (
	"encoding/json"
	"fmt"
	"os"
)

// Control mode selectors.
const (
	// ModeNative is the position-mode controller (primary).
	ModeNative = "native"

	// ModePID is the velocity-mode PID controller (secondary).
	ModePID = "pid"
)

// TuningConfig is the hot-reloadable tracking configuration. It mirrors the
// on-disk tuning JSON document. All fields are scalars so snapshots compare
// with == and an unchanged reload is a no-op.
type TuningConfig struct {
	// ControlMode selects the control strategy: "native" or "pid".
	ControlMode string `json:"control_mode"`

	Kalman    KalmanConfig    `json:"kalman"`
	Native    NativeConfig    `json:"native"`
	PID       PIDConfig       `json:"pid"`
	Safety    SafetyConfig    `json:"safety"`
	Stiffness StiffnessConfig `json:"stiffness"`
}

// KalmanConfig tunes the pixel-space state estimator.
type KalmanConfig struct {
	ProcessNoise     float64 `json:"process_noise"`
	MeasurementNoise float64 `json:"measurement_noise"`

	// LatencyComp biases the prediction horizon forward (seconds) so the
	// commanded position anticipates where the target will be when the
	// actuator catches up.
	LatencyComp float64 `json:"latency_comp"`
}

// NativeConfig tunes the position-mode controller.
type NativeConfig struct {
	// Camera field of view per axis (radians, full angle).
	FOVX float64 `json:"fov_x"`
	FOVY float64 `json:"fov_y"`

	// Normalized-error deadzones per axis.
	DeadzoneX float64 `json:"deadzone_x"`
	DeadzoneY float64 `json:"deadzone_y"`

	// Scheduler limits.
	MaxVelocity float64 `json:"max_velocity"` // rad/s
	MaxAccel    float64 `json:"max_accel"`    // rad/s^2
	GainP       float64 `json:"gain_p"`

	// Velocity estimator.
	GainV                    float64 `json:"gain_v"` // alpha-beta blend
	EstimatorLimitMultiplier float64 `json:"estimator_limit_multiplier"`

	// Target smoothing per axis (0 = raw, 1 = frozen).
	SmoothingX float64 `json:"smoothing_x"`
	SmoothingY float64 `json:"smoothing_y"`

	// Ghost pursuit decay per tick.
	VelDecay float64 `json:"vel_decay"`

	// Speed fraction forwarded with position commands.
	FractionMaxSpeed float64 `json:"fraction_max_speed"`

	// Seconds without a measurement before the target is declared lost.
	TargetLostTimeout float64 `json:"target_lost_timeout"`
}

// PIDConfig tunes the velocity-mode controller.
type PIDConfig struct {
	BaseKp    float64 `json:"base_kp"`
	BoostKp   float64 `json:"boost_kp"`
	Ki        float64 `json:"ki"`
	Kd        float64 `json:"kd"`
	MaxOutput float64 `json:"max_output"`
	Deadzone  float64 `json:"deadzone"`
}

// SafetyConfig bounds the control-loop time step.
type SafetyConfig struct {
	MinDT float64 `json:"min_dt"`
	MaxDT float64 `json:"max_dt"`

	// PropagationDT caps the dt used to advance a ghost target.
	PropagationDT float64 `json:"safe_dt_propagation"`
}

// StiffnessConfig holds joint stiffness bounds.
type StiffnessConfig struct {
	Min float64 `json:"min"`
}

// DefaultTuning returns the stock tuning used when no file is present.
func DefaultTuning() TuningConfig {
	return TuningConfig{
		ControlMode: ModeNative,
		Kalman: KalmanConfig{
			ProcessNoise:     0.1,
			MeasurementNoise: 150.0,
			LatencyComp:      0.0,
		},
		Native: NativeConfig{
			FOVX:                     1.064, // camera HFOV ~61 deg
			FOVY:                     0.831, // camera VFOV ~48 deg
			DeadzoneX:                0.05,
			DeadzoneY:                0.05,
			MaxVelocity:              2.0,
			MaxAccel:                 10.0,
			GainP:                    8.0,
			GainV:                    0.1,
			EstimatorLimitMultiplier: 1.5,
			SmoothingX:               0.5,
			SmoothingY:               0.5,
			VelDecay:                 0.95,
			FractionMaxSpeed:         0.2,
			TargetLostTimeout:        0.5,
		},
		PID: PIDConfig{
			BaseKp:    0.03,
			BoostKp:   0.0,
			Ki:        0.01,
			Kd:        0.025,
			MaxOutput: 0.12,
			Deadzone:  0.0,
		},
		Safety: SafetyConfig{
			MinDT:         0.001,
			MaxDT:         0.05,
			PropagationDT: 0.02,
		},
		Stiffness: StiffnessConfig{
			Min: 0.65,
		},
	}
}

// TuningLoader reads the tuning document from disk.
type TuningLoader struct {
	Path string
}

// Load parses the tuning file. Fields absent from the file keep their
// defaults. A missing or malformed file returns an error; callers keep the
// prior snapshot in force.
func (l TuningLoader) Load() (TuningConfig, error) {
	cfg := DefaultTuning()

	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read tuning file: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse tuning file %s: %w", l.Path, err)
	}
	return cfg, nil
}
