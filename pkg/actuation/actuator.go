// Package actuation forwards tracker commands to the robot RPC shim.
//
// A dedicated loop consumes a single-slot command mailbox at a fixed rate.
// Writers overwrite unconditionally, so the robot always receives the
// freshest set-point and a stalled RPC never grows a queue.
package actuation

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-pepper/pkg/robot"
	"github.com/teslashibe/go-pepper/pkg/tracking"
)

// mailboxWait bounds how long one tick blocks on an empty mailbox.
const mailboxWait = 100 * time.Millisecond

// DefaultRate is the actuator tick period (50 Hz).
const DefaultRate = 20 * time.Millisecond

// Actuator is the fixed-rate command consumer.
type Actuator struct {
	robot  robot.Controller
	logger *slog.Logger
	rate   time.Duration

	// Single-slot mailbox. sendMu serializes the drain-then-push so a
	// writer can never block behind another writer's slot.
	commands chan tracking.Command
	sendMu   sync.Mutex

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool

	sentCount  atomic.Int64
	errorCount atomic.Int64
}

// New creates an actuator driving ctrl. rate <= 0 uses DefaultRate.
func New(ctrl robot.Controller, rate time.Duration, logger *slog.Logger) *Actuator {
	if rate <= 0 {
		rate = DefaultRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Actuator{
		robot:    ctrl,
		logger:   logger.With("component", "actuator"),
		rate:     rate,
		commands: make(chan tracking.Command, 1),
	}
}

// Start launches the actuator loop.
func (a *Actuator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return
	}
	a.running = true
	a.stop = make(chan struct{})
	a.done = make(chan struct{})

	go a.run(a.stop, a.done)
}

// Stop terminates the loop and waits for it to exit.
func (a *Actuator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false
	close(a.stop)
	<-a.done
}

// Send overwrites the mailbox with cmd. Never blocks.
func (a *Actuator) Send(cmd tracking.Command) {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	select {
	case <-a.commands:
	default:
	}
	a.commands <- cmd
}

// SetStiffness sets head stiffness immediately, bypassing the mailbox.
func (a *Actuator) SetStiffness(value float64) error {
	return a.robot.SetStiffnesses(robot.ChainHead, value)
}

// Sent returns the number of commands forwarded upstream.
func (a *Actuator) Sent() int64 {
	return a.sentCount.Load()
}

func (a *Actuator) run(stop, done chan struct{}) {
	defer close(done)

	a.logger.Info("actuator started", "rate_hz", float64(time.Second)/float64(a.rate))

	for {
		start := time.Now()

		var cmd tracking.Command
		var got bool

		wait := time.NewTimer(mailboxWait)
		select {
		case <-stop:
			wait.Stop()
			return
		case cmd = <-a.commands:
			wait.Stop()
			got = true
		case <-wait.C:
		}

		if got {
			a.dispatch(cmd)
		}

		// Maintain the tick rate.
		if remain := a.rate - time.Since(start); remain > 0 {
			select {
			case <-stop:
				return
			case <-time.After(remain):
			}
		}
	}
}

func (a *Actuator) dispatch(cmd tracking.Command) {
	switch cmd.Type {
	case tracking.CommandPosition:
		// One two-joint call keeps motion onset synchronized.
		err := a.robot.SetAngles(
			[]string{robot.JointHeadYaw, robot.JointHeadPitch},
			[]float64{cmd.Yaw, cmd.Pitch},
			cmd.SpeedFraction,
		)
		if err != nil {
			a.errorCount.Add(1)
			a.logger.Warn("set_angles rejected", "error", err)
			return
		}
		a.sentCount.Add(1)
	case tracking.CommandVelocity:
		// Velocity control is reserved; the shim takes absolute angles.
		a.logger.Debug("velocity command skipped", "yaw", cmd.Yaw, "pitch", cmd.Pitch)
	}
}
