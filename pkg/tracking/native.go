package tracking

import (
	"math"

	"github.com/teslashibe/go-pepper/pkg/state"
)

// NativeController is the position-mode control strategy: deadzone, global
// target reconstruction, EMA smoothing, arrival-time velocity estimation,
// ghost pursuit, and a trapezoidal scheduler per axis.
type NativeController struct {
	smootherYaw   ExponentialSmoother
	smootherPitch ExponentialSmoother

	estimatorYaw   AlphaBetaEstimator
	estimatorPitch AlphaBetaEstimator

	schedulerYaw   TrapezoidalScheduler
	schedulerPitch TrapezoidalScheduler
}

// Reset re-initializes all smoothers, estimators, and schedulers.
func (n *NativeController) Reset() {
	n.smootherYaw.Reset()
	n.smootherPitch.Reset()
	n.estimatorYaw.Reset()
	n.estimatorPitch.Reset()
	n.schedulerYaw.Reset()
	n.schedulerPitch.Reset()
}

// Update computes the next position command.
//
// errX/errY are the normalized pixel errors, nil when no detection arrived
// this tick. angles is the reference head pose: the capture-time angles when
// the detection carries them, otherwise the freshest buffered sample. now is
// the arrival clock for velocity estimation.
func (n *NativeController) Update(errX, errY *float64, angles *state.Angles, dt float64, cfg *TuningConfig, now float64) (Command, bool) {
	ncfg := &cfg.Native

	if errX != nil && errY != nil && angles != nil {
		ex, ey := *errX, *errY
		if math.Abs(ex) <= ncfg.DeadzoneX {
			ex = 0
		}
		if math.Abs(ey) <= ncfg.DeadzoneY {
			ey = 0
		}

		// Map vision error to joint offsets. FOV is the full angle, so
		// a full-frame error spans half of it from center.
		rawYaw := angles.Yaw + ex*ncfg.FOVX*0.5
		rawPitch := angles.Pitch + ey*ncfg.FOVY*0.5

		n.smootherYaw.Update(rawYaw, ncfg.SmoothingX)
		n.smootherPitch.Update(rawPitch, ncfg.SmoothingY)

		estLimit := ncfg.MaxVelocity * ncfg.EstimatorLimitMultiplier
		n.estimatorYaw.Update(rawYaw, now, ncfg.GainV, estLimit)
		n.estimatorPitch.Update(rawPitch, now, ncfg.GainV, estLimit)
	} else {
		// Ghost pursuit: advance the smoothed target by the scheduler's
		// decayed velocity for a bounded dt.
		pdt := math.Min(dt, cfg.Safety.PropagationDT)
		n.smootherYaw.Advance(n.schedulerYaw.Velocity() * ncfg.VelDecay * pdt)
		n.smootherPitch.Advance(n.schedulerPitch.Velocity() * ncfg.VelDecay * pdt)

		// The estimator keeps running for propagation selection only.
		n.estimatorYaw.Propagate(ncfg.VelDecay)
		n.estimatorPitch.Propagate(ncfg.VelDecay)
	}

	targetYaw, okYaw := n.smootherYaw.Value()
	targetPitch, okPitch := n.smootherPitch.Value()
	if !okYaw || !okPitch || angles == nil {
		return Command{}, false
	}

	innerDT := clamp(dt, cfg.Safety.MinDT, cfg.Safety.MaxDT)

	// Estimator velocity is deliberately not fed to the scheduler.
	cmdYaw := n.schedulerYaw.Update(targetYaw, angles.Yaw, innerDT, 0, ncfg.MaxVelocity, ncfg.MaxAccel, ncfg.GainP)
	cmdPitch := n.schedulerPitch.Update(targetPitch, angles.Pitch, innerDT, 0, ncfg.MaxVelocity, ncfg.MaxAccel, ncfg.GainP)

	return PositionCommand(cmdYaw, cmdPitch, ncfg.FractionMaxSpeed), true
}
