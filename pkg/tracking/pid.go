package tracking

import "math"

// integralLimit clamps the PID integrator against windup.
const integralLimit = 0.5

// PIDAxis is one axis of the velocity-mode controller.
type PIDAxis struct {
	prevError  float64
	integral   float64
	lastOutput float64
}

// Reset clears the axis state.
func (p *PIDAxis) Reset() {
	p.prevError = 0
	p.integral = 0
	p.lastOutput = 0
}

// Update computes the velocity output for a normalized error.
// Inside the deadzone the error is zeroed and the integrator resets.
func (p *PIDAxis) Update(err, dt float64, cfg *PIDConfig, kp float64) float64 {
	if dt <= 0.0001 {
		return p.lastOutput
	}

	if math.Abs(err) <= cfg.Deadzone {
		err = 0
		p.integral = 0
	}

	pTerm := kp * err
	dTerm := cfg.Kd * (err - p.prevError) / dt

	p.integral = clamp(p.integral+err*dt, -integralLimit, integralLimit)
	iTerm := cfg.Ki * p.integral

	output := pTerm + dTerm + iTerm
	if cfg.MaxOutput > 0 {
		output = clamp(output, -cfg.MaxOutput, cfg.MaxOutput)
	}

	p.prevError = err
	p.lastOutput = output
	return output
}

// AdaptiveKp boosts the proportional gain with the dominant error magnitude.
func AdaptiveKp(cfg *PIDConfig, errX, errY float64) float64 {
	return cfg.BaseKp + cfg.BoostKp*math.Max(math.Abs(errX), math.Abs(errY))
}
