package tracking

import "math"

// ExponentialSmoother is an EMA over the target joint angle. The first
// value seeds directly.
type ExponentialSmoother struct {
	value  float64
	seeded bool
}

// Reset discards the smoothed value.
func (s *ExponentialSmoother) Reset() {
	s.value = 0
	s.seeded = false
}

// Update blends a raw value in. smoothing is the weight kept on the old
// value; alpha = 1 - smoothing, clamped to [0, 1].
func (s *ExponentialSmoother) Update(raw, smoothing float64) float64 {
	if !s.seeded {
		s.value = raw
		s.seeded = true
		return s.value
	}
	alpha := clamp(1.0-smoothing, 0.0, 1.0)
	s.value = alpha*raw + (1.0-alpha)*s.value
	return s.value
}

// Advance shifts the smoothed value without a measurement (ghost pursuit).
// A no-op until seeded.
func (s *ExponentialSmoother) Advance(delta float64) {
	if s.seeded {
		s.value += delta
	}
}

// Value returns the smoothed value and whether one exists.
func (s *ExponentialSmoother) Value() (float64, bool) {
	return s.value, s.seeded
}

// AlphaBetaEstimator derives a smoothed velocity from position samples.
// Arrival time, not capture time, feeds it: capture timestamps carry
// buffering jitter that produces spurious velocity spikes.
type AlphaBetaEstimator struct {
	velocity float64
	lastPos  float64
	lastTime float64
	seeded   bool
}

// Reset clears the estimate.
func (e *AlphaBetaEstimator) Reset() {
	e.velocity = 0
	e.lastPos = 0
	e.lastTime = 0
	e.seeded = false
}

// Update absorbs a new position sample at time t. beta is the blend weight
// of the instantaneous velocity; maxV clamps it.
func (e *AlphaBetaEstimator) Update(pos, t, beta, maxV float64) float64 {
	if e.seeded {
		dt := t - e.lastTime
		if dt > 0.001 {
			instV := clamp((pos-e.lastPos)/dt, -maxV, maxV)
			e.velocity = beta*instV + (1.0-beta)*e.velocity
		}
	}
	e.lastPos = pos
	e.lastTime = t
	e.seeded = true
	return e.velocity
}

// Propagate decays the velocity when no measurement is available.
// Does not move the last position.
func (e *AlphaBetaEstimator) Propagate(decay float64) float64 {
	e.velocity *= decay
	return e.velocity
}

// Velocity returns the current estimate.
func (e *AlphaBetaEstimator) Velocity() float64 {
	return e.velocity
}

// TrapezoidalScheduler integrates a rate-and-acceleration-limited velocity
// toward a target position. The first update seeds the command at the
// measured angle and emits it unchanged.
type TrapezoidalScheduler struct {
	currV   float64
	lastCmd float64
	seeded  bool
}

// Reset clears the scheduler.
func (s *TrapezoidalScheduler) Reset() {
	s.currV = 0
	s.lastCmd = 0
	s.seeded = false
}

// Update computes the next commanded position.
func (s *TrapezoidalScheduler) Update(target, current, dt, feedForward, maxV, maxA, kp float64) float64 {
	if !s.seeded {
		s.lastCmd = current
		s.currV = 0
		s.seeded = true
		return current
	}

	desV := (target-s.lastCmd)*kp + feedForward
	desV = clamp(desV, -maxV, maxV)

	maxDV := maxA * dt
	dv := clamp(desV-s.currV, -maxDV, maxDV)

	s.currV += dv
	s.lastCmd += s.currV * dt

	return s.lastCmd
}

// Velocity returns the scheduler's current velocity.
func (s *TrapezoidalScheduler) Velocity() float64 {
	return s.currV
}

// LastCommand returns the last commanded position and whether one exists.
func (s *TrapezoidalScheduler) LastCommand() (float64, bool) {
	return s.lastCmd, s.seeded
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
