// Package tracking implements the closed-loop head tracking core: a
// latency-compensated Kalman estimator over pixel measurements and a
// bounded, smoothed motion scheduler that turns detections into joint
// commands at the control rate, decoupled from perception throughput.
package tracking

import (
	"time"

	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/state"
)

// recenterSpeedFraction is the slow speed used for recovery moves.
const recenterSpeedFraction = 0.1

// Tracker is the head tracking core. It owns all estimator and controller
// state and is driven from a single goroutine; it holds no locks.
type Tracker struct {
	width  int
	height int
	cfg    *TuningConfig

	kf       *KalmanFilter
	native   NativeController
	pidYaw   PIDAxis
	pidPitch PIDAxis

	lastUpdate float64
	started    bool

	telemetry *TickLogger

	now func() float64
}

// New creates a tracker for frames of the given dimensions.
func New(width, height int, cfg *TuningConfig) *Tracker {
	return &Tracker{
		width:  width,
		height: height,
		cfg:    cfg,
		kf:     NewKalmanFilter(cfg.Kalman.ProcessNoise, cfg.Kalman.MeasurementNoise),
		now:    func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// SetTuning swaps in a new tuning snapshot. Estimator state is preserved;
// only parameters change.
func (t *Tracker) SetTuning(cfg *TuningConfig) {
	t.cfg = cfg
	t.kf.SetNoise(cfg.Kalman.ProcessNoise, cfg.Kalman.MeasurementNoise)
}

// SetTelemetry attaches an optional per-tick CSV logger.
func (t *Tracker) SetTelemetry(l *TickLogger) {
	t.telemetry = l
}

// SetClock overrides the wall clock. For tests.
func (t *Tracker) SetClock(now func() float64) {
	t.now = now
}

// Reset re-initializes all internal state: Kalman filter (covariance back
// to its prior), smoothers, estimators, schedulers, and PID axes. Called on
// target change and reacquisition.
func (t *Tracker) Reset() {
	t.kf.Reset()
	t.native.Reset()
	t.pidYaw.Reset()
	t.pidPitch.Reset()
	t.started = false
}

// Update runs one control tick.
//
// detection is nil when no measurement arrived since the last tick. current
// is the freshest buffered head pose (nil when joint state is unavailable).
// Returns false when there is nothing to command.
func (t *Tracker) Update(detection *perception.Detection, current *state.Angles) (Command, bool) {
	now := t.now()

	dt := t.cfg.Safety.MinDT
	if t.started {
		dt = clamp(now-t.lastUpdate, t.cfg.Safety.MinDT, t.cfg.Safety.MaxDT)
	}
	t.lastUpdate = now
	t.started = true

	// Predict forward past the perception/transport latency so the command
	// lands where the target will be.
	targetX, targetY := t.kf.Predict(dt + t.cfg.Kalman.LatencyComp)

	var captureAngles *state.Angles
	if detection != nil {
		cx, cy := detection.BBox.Center()
		targetX, targetY = t.kf.Update(cx, cy)
		captureAngles = detection.SourceAngles
	}

	if !t.kf.Healthy() {
		t.Reset()
		return PositionCommand(0, 0, recenterSpeedFraction), true
	}
	if !t.kf.Initialized() && detection == nil && t.cfg.ControlMode != ModeNative {
		return Command{}, false
	}

	errX := -(targetX - float64(t.width)/2) / (float64(t.width) / 2)
	errY := (targetY - float64(t.height)/2) / (float64(t.height) / 2)

	if t.cfg.ControlMode == ModePID {
		kp := AdaptiveKp(&t.cfg.PID, errX, errY)
		u := VelocityCommand(
			t.pidYaw.Update(errX, dt, &t.cfg.PID, kp),
			t.pidPitch.Update(errY, dt, &t.cfg.PID, kp),
		)
		return u, true
	}

	// Position mode. The error is referenced to the capture frame, so the
	// capture-time angles reconstruct the correct global target.
	angles := current
	if captureAngles != nil {
		angles = captureAngles
	}

	var pErrX, pErrY *float64
	if detection != nil {
		pErrX, pErrY = &errX, &errY
	}

	cmd, ok := t.native.Update(pErrX, pErrY, angles, dt, t.cfg, now)
	if ok && t.telemetry != nil {
		latency := 0.0
		rawErr := 0.0
		if detection != nil {
			latency = now - detection.Timestamp
			rawErr = errX
		}
		targetYaw, _ := t.native.smootherYaw.Value()
		currYaw := 0.0
		if angles != nil {
			currYaw = angles.Yaw
		}
		t.telemetry.Log(targetYaw, currYaw, rawErr, cmd.Yaw, latency)
	}
	return cmd, ok
}
