// Package orchestrator wires the tracking pipeline together: it owns the
// tracker, the detection mailbox, the tuning snapshot, and the 100 Hz
// control loop that decouples actuation from perception throughput.
package orchestrator

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/state"
	"github.com/teslashibe/go-pepper/pkg/tracking"
	"github.com/teslashibe/go-pepper/pkg/vision"
)

const (
	// DefaultTickRate is the control loop period (100 Hz).
	DefaultTickRate = 10 * time.Millisecond

	// tuningReloadTicks is how many control ticks pass between tuning
	// file reloads (~1 s at the default rate).
	tuningReloadTicks = 100

	// hardTimeout is the outer fence: with no measurement for this long
	// the loop stops tracking and sends a zero-velocity command each tick.
	hardTimeout = 1.0

	// recenterSpeed is the speed fraction of the one-shot recovery move.
	recenterSpeed = 0.1

	// refWidth/refHeight are the tracker's reference frame geometry.
	// Detections from larger frames are scaled into it.
	refWidth  = 320
	refHeight = 240
)

// StateSource provides time-indexed joint state. *state.Buffer satisfies it.
type StateSource interface {
	At(t float64) (state.Angles, bool)
}

// Detector runs perception on a frame. *perception.Client satisfies it.
type Detector interface {
	Detect(img gocv.Mat, target string) (*perception.ReplyData, error)
}

// CommandSink consumes tracker commands. *actuation.Actuator satisfies it.
type CommandSink interface {
	Send(cmd tracking.Command)
	SetStiffness(value float64) error
}

// Status is a dashboard snapshot of the orchestrator.
type Status struct {
	Target          string           `json:"target"`
	TargetLost      bool             `json:"target_lost"`
	LastMeasurement float64          `json:"last_measurement"`
	LastCommand     tracking.Command `json:"last_command"`
	ControlMode     string           `json:"control_mode"`
}

// Orchestrator owns the tracking control loop and all shared tracking state.
type Orchestrator struct {
	logger *slog.Logger

	states   StateSource
	detector Detector
	sink     CommandSink
	tracker  *tracking.Tracker

	loader      tracking.TuningLoader
	tuning      atomic.Pointer[tracking.TuningConfig]
	tuningDirty atomic.Bool

	mailbox DetectionMailbox

	mu              sync.Mutex
	target          string
	resetRequested  bool
	targetLost      bool
	lastMeasurement float64
	lastCommand     tracking.Command
	lastStiffness   float64

	runMu    sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	running  bool
	tickRate time.Duration

	now func() float64
}

// New creates an orchestrator. The tracker is constructed internally from
// the tuning file at tuningPath (defaults apply when the file is absent).
func New(states StateSource, detector Detector, sink CommandSink, tuningPath string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "orchestrator")

	loader := tracking.TuningLoader{Path: tuningPath}
	cfg, err := loader.Load()
	if err != nil {
		logger.Warn("tuning file unavailable, using defaults", "error", err)
		cfg = tracking.DefaultTuning()
	}

	o := &Orchestrator{
		logger:   logger,
		states:   states,
		detector: detector,
		sink:     sink,
		loader:   loader,
		tickRate: DefaultTickRate,
		now:      func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
	o.tuning.Store(&cfg)
	o.tracker = tracking.New(refWidth, refHeight, &cfg)
	return o
}

// SetClock overrides the wall clock for the control loop. For tests.
// The tracker shares the clock.
func (o *Orchestrator) SetClock(now func() float64) {
	o.now = now
	o.tracker.SetClock(now)
}

// SetTickRate overrides the control period. For tests.
func (o *Orchestrator) SetTickRate(rate time.Duration) {
	o.tickRate = rate
}

// Tracker exposes the tracker for telemetry attachment.
func (o *Orchestrator) Tracker() *tracking.Tracker {
	return o.tracker
}

// Tuning returns the current tuning snapshot.
func (o *Orchestrator) Tuning() tracking.TuningConfig {
	return *o.tuning.Load()
}

// Start launches the control loop and applies the initial stiffness.
func (o *Orchestrator) Start() {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if o.running {
		return
	}
	o.running = true
	o.stop = make(chan struct{})
	o.done = make(chan struct{})

	cfg := o.tuning.Load()
	if err := o.sink.SetStiffness(cfg.Stiffness.Min); err != nil {
		o.logger.Warn("initial stiffness set failed", "error", err)
	}
	o.mu.Lock()
	o.lastStiffness = cfg.Stiffness.Min
	o.mu.Unlock()

	go o.controlLoop(o.stop, o.done)
}

// Stop terminates the control loop, waiting up to a second for it to exit.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if !o.running {
		return
	}
	o.running = false
	close(o.stop)

	select {
	case <-o.done:
	case <-time.After(time.Second):
		o.logger.Error("control loop did not stop in time")
	}
}

// SetTarget switches the active target label. An empty label stops
// tracking. Any change resets the tracker.
func (o *Orchestrator) SetTarget(label string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if label == o.target {
		return
	}
	o.logger.Info("target changed", "from", o.target, "to", label)
	o.target = label
	o.resetRequested = true
	o.targetLost = false
	o.lastMeasurement = 0
	o.mailbox.Put(nil)
}

// Target returns the active target label, empty when idle.
func (o *Orchestrator) Target() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

// YieldControl clears the target and stops head motion. Used when an
// external behavior must take the head.
func (o *Orchestrator) YieldControl() {
	o.SetTarget("")
	o.sink.Send(tracking.VelocityCommand(0, 0))
}

// Status returns a snapshot for the dashboard.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Target:          o.target,
		TargetLost:      o.targetLost,
		LastMeasurement: o.lastMeasurement,
		LastCommand:     o.lastCommand,
		ControlMode:     o.tuning.Load().ControlMode,
	}
}

// HandleFrame is the vision callback. It runs perception on the frame,
// interprets the reply, and overwrites the detection mailbox. Runs on the
// receiver's worker goroutine; its blocking round-trip is the pipeline's
// natural back-pressure point.
func (o *Orchestrator) HandleFrame(f vision.Frame) {
	target := o.Target()
	if target == "" {
		return
	}

	data, err := o.detector.Detect(f.Image, target)
	if err != nil {
		o.logger.Info("perception request failed", "error", err)
		return
	}

	var src *state.Angles
	if a, ok := o.states.At(f.Timestamp); ok {
		src = &a
	}

	interp := perception.NewInterpreter(f.Width, f.Height)
	det := interp.Interpret(data, target, f.Timestamp, src)
	if det == nil {
		return
	}

	if f.Width != refWidth || f.Height != refHeight {
		sx := float64(refWidth) / float64(f.Width)
		sy := float64(refHeight) / float64(f.Height)
		det.BBox.XMin *= sx
		det.BBox.XMax *= sx
		det.BBox.YMin *= sy
		det.BBox.YMax *= sy
	}

	o.Deliver(det)
}

// Deliver hands a detection to the control loop.
func (o *Orchestrator) Deliver(det *perception.Detection) {
	o.mailbox.Put(det)
	o.mu.Lock()
	if det.Timestamp > o.lastMeasurement {
		o.lastMeasurement = det.Timestamp
	}
	o.mu.Unlock()
}

func (o *Orchestrator) controlLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.tickRate)
	defer ticker.Stop()

	o.logger.Info("control loop started", "rate_hz", float64(time.Second)/float64(o.tickRate))

	var tick int64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			tick++
			o.controlTick(tick)
		}
	}
}

// controlTick runs one control cycle.
func (o *Orchestrator) controlTick(tick int64) {
	now := o.now()

	o.mu.Lock()
	target := o.target
	reset := o.resetRequested
	o.resetRequested = false
	lost := o.targetLost
	o.mu.Unlock()

	if reset {
		o.tracker.Reset()
	}
	if o.tuningDirty.Swap(false) {
		// A snapshot published off-thread (dashboard); the tracker is
		// only touched from this goroutine.
		o.tracker.SetTuning(o.tuning.Load())
	}
	if target == "" {
		return
	}

	det := o.mailbox.Take()
	if det != nil {
		o.mu.Lock()
		if det.Timestamp > o.lastMeasurement {
			o.lastMeasurement = det.Timestamp
		}
		if o.targetLost {
			// Reacquired.
			o.targetLost = false
			lost = false
		}
		o.mu.Unlock()
	}

	o.mu.Lock()
	last := o.lastMeasurement
	o.mu.Unlock()

	cfg := o.tuning.Load()
	lostTimeout := cfg.Native.TargetLostTimeout
	if lostTimeout <= 0 {
		lostTimeout = 0.5
	}

	// Target-lost recovery: one-shot recenter, then idle until a
	// detection returns.
	if last > 0 && now-last > lostTimeout {
		if !lost {
			o.tracker.Reset()
			o.send(tracking.PositionCommand(0, 0, recenterSpeed))
			o.mu.Lock()
			o.targetLost = true
			o.mu.Unlock()
			o.logger.Info("target lost, recentering", "target", target)
		}
		return
	}
	if lost {
		return
	}

	if tick%tuningReloadTicks == 0 {
		o.reloadTuning()
		cfg = o.tuning.Load()
	}

	// Outer fence against spinning on stale state.
	if last > 0 && now-last > hardTimeout {
		o.send(tracking.VelocityCommand(0, 0))
		return
	}

	var current *state.Angles
	if a, ok := o.states.At(now); ok {
		current = &a
	}

	cmd, ok := o.tracker.Update(det, current)
	if ok {
		o.send(cmd)
	}
}

func (o *Orchestrator) send(cmd tracking.Command) {
	o.sink.Send(cmd)
	o.mu.Lock()
	o.lastCommand = cmd
	o.mu.Unlock()
}

// reloadTuning re-reads the tuning file and publishes a new snapshot when
// it changed. Parse errors leave the prior snapshot in force.
func (o *Orchestrator) reloadTuning() {
	next, err := o.loader.Load()
	if err != nil {
		o.logger.Warn("tuning reload failed", "error", err)
		return
	}

	cur := o.tuning.Load()
	if next == *cur {
		return
	}

	o.tuning.Store(&next)
	o.tracker.SetTuning(&next)
	o.logger.Info("tuning reloaded", "mode", next.ControlMode)

	o.mu.Lock()
	stiffChanged := next.Stiffness.Min != o.lastStiffness
	if stiffChanged {
		o.lastStiffness = next.Stiffness.Min
	}
	o.mu.Unlock()

	if stiffChanged {
		if err := o.sink.SetStiffness(next.Stiffness.Min); err != nil {
			o.logger.Warn("stiffness update failed", "error", err)
		}
	}
}

// ApplyTuning publishes cfg as the live snapshot and writes nothing to
// disk. Used by the dashboard's tuning endpoint. The periodic file reload
// compares the file against the live snapshot, so the next reload replaces
// cfg whenever the file's contents differ from it; cfg is kept only while
// they match. The tracker picks the snapshot up on its next control tick.
func (o *Orchestrator) ApplyTuning(cfg tracking.TuningConfig) {
	o.tuning.Store(&cfg)
	o.tuningDirty.Store(true)
}
