package orchestrator

import (
	"math"
	"sync"
	"testing"

	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/state"
	"github.com/teslashibe/go-pepper/pkg/tracking"
)

type fakeSink struct {
	mu        sync.Mutex
	commands  []tracking.Command
	stiffness []float64
}

func (f *fakeSink) Send(cmd tracking.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
}

func (f *fakeSink) SetStiffness(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stiffness = append(f.stiffness, v)
	return nil
}

func (f *fakeSink) all() []tracking.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tracking.Command, len(f.commands))
	copy(out, f.commands)
	return out
}

type fakeStates struct {
	angles state.Angles
}

func (f *fakeStates) At(t float64) (state.Angles, bool) {
	return f.angles, true
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeSink, *float64) {
	t.Helper()
	sink := &fakeSink{}
	o := New(&fakeStates{}, nil, sink, "", nil)

	now := new(float64)
	o.SetClock(func() float64 { return *now })
	return o, sink, now
}

func centered(ts float64) *perception.Detection {
	return &perception.Detection{
		Label:      "person",
		Confidence: 1.0,
		BBox:       perception.BBox{XMin: 160, YMin: 120, XMax: 160, YMax: 120},
		Timestamp:  ts,
	}
}

func TestMailbox_FreshestWins(t *testing.T) {
	var m DetectionMailbox

	m.Put(centered(1))
	m.Put(centered(2))
	m.Put(centered(3))

	got := m.Take()
	if got == nil || got.Timestamp != 3 {
		t.Fatalf("Take = %+v, want the freshest detection", got)
	}

	// Destructive read: the second take is empty.
	if second := m.Take(); second != nil {
		t.Errorf("second Take = %+v, want nil", second)
	}
}

func TestOrchestrator_IdleWithoutTarget(t *testing.T) {
	o, sink, now := newTestOrchestrator(t)

	for i := 0; i < 20; i++ {
		*now += 0.01
		o.controlTick(int64(i + 1))
	}
	if len(sink.all()) != 0 {
		t.Errorf("idle orchestrator sent %d commands", len(sink.all()))
	}

	// Delivered detections without a target are ignored too.
	o.Deliver(centered(*now))
	*now += 0.01
	o.controlTick(99)
	if len(sink.all()) != 0 {
		t.Error("command sent with no active target")
	}
}

func TestOrchestrator_TracksDeliveredDetections(t *testing.T) {
	o, sink, now := newTestOrchestrator(t)
	o.SetTarget("person")

	for i := 0; i < 10; i++ {
		*now += 0.01
		o.Deliver(centered(*now))
		o.controlTick(int64(i + 1))
	}

	cmds := sink.all()
	if len(cmds) == 0 {
		t.Fatal("no commands emitted while tracking")
	}
	for i, cmd := range cmds {
		if cmd.Type != tracking.CommandPosition {
			t.Fatalf("command %d type = %v, want position", i, cmd.Type)
		}
		if math.Abs(cmd.Yaw) > 1e-6 || math.Abs(cmd.Pitch) > 1e-6 {
			t.Fatalf("command %d = (%v, %v), want centered", i, cmd.Yaw, cmd.Pitch)
		}
	}
}

func TestOrchestrator_TargetLossAndRecovery(t *testing.T) {
	o, sink, now := newTestOrchestrator(t)
	o.SetTarget("person")

	tick := int64(0)
	step := func(det *perception.Detection) {
		tick++
		*now += 0.01
		if det != nil {
			o.Deliver(det)
		}
		o.controlTick(tick)
	}

	// 10 ticks with detections.
	for i := 0; i < 10; i++ {
		step(centered(*now + 0.01))
	}
	tracked := len(sink.all())
	if tracked == 0 {
		t.Fatal("no commands during tracking phase")
	}

	// 60 ticks starved: the lost timeout (0.5 s) fires mid-way.
	for i := 0; i < 60; i++ {
		step(nil)
	}

	cmds := sink.all()
	var recenters []tracking.Command
	for _, cmd := range cmds[tracked:] {
		if cmd.Type == tracking.CommandPosition && cmd.Yaw == 0 && cmd.Pitch == 0 && cmd.SpeedFraction == recenterSpeed {
			recenters = append(recenters, cmd)
		}
	}
	if len(recenters) != 1 {
		t.Fatalf("recenter commands = %d, want exactly 1", len(recenters))
	}
	if !o.Status().TargetLost {
		t.Error("target not marked lost")
	}

	// Nothing after the recenter until a detection returns.
	lastIdx := len(cmds)
	for i := 0; i < 20; i++ {
		step(nil)
	}
	if got := len(sink.all()); got != lastIdx {
		t.Errorf("%d commands emitted while lost, want none", got-lastIdx)
	}

	// A fresh detection recovers.
	step(centered(*now + 0.01))
	step(centered(*now + 0.01))
	if got := len(sink.all()); got <= lastIdx {
		t.Error("no commands after reacquisition")
	}
	if o.Status().TargetLost {
		t.Error("target still marked lost after reacquisition")
	}
}

func TestOrchestrator_ClearTargetSilences(t *testing.T) {
	o, sink, now := newTestOrchestrator(t)
	o.SetTarget("person")

	for i := 0; i < 5; i++ {
		*now += 0.01
		o.Deliver(centered(*now))
		o.controlTick(int64(i + 1))
	}
	before := len(sink.all())
	if before == 0 {
		t.Fatal("no commands while tracking")
	}

	o.SetTarget("")
	for i := 0; i < 20; i++ {
		*now += 0.01
		o.controlTick(int64(100 + i))
	}
	if got := len(sink.all()); got != before {
		t.Errorf("%d commands after clearing the target, want 0", got-before)
	}
}

func TestOrchestrator_YieldEmitsVelocityZero(t *testing.T) {
	o, sink, _ := newTestOrchestrator(t)
	o.SetTarget("person")

	o.YieldControl()

	cmds := sink.all()
	if len(cmds) != 1 {
		t.Fatalf("commands = %d, want 1", len(cmds))
	}
	if cmds[0].Type != tracking.CommandVelocity || cmds[0].Yaw != 0 || cmds[0].Pitch != 0 {
		t.Errorf("yield command = %+v, want velocity zero", cmds[0])
	}
	if o.Target() != "" {
		t.Errorf("target = %q after yield, want empty", o.Target())
	}
}

func TestOrchestrator_HardTimeoutStopsCommands(t *testing.T) {
	o, sink, now := newTestOrchestrator(t)

	// Disable the lost timeout so the 1 s hard fence is reachable.
	cfg := o.Tuning()
	cfg.Native.TargetLostTimeout = 10.0
	o.ApplyTuning(cfg)

	o.SetTarget("person")

	*now += 0.01
	o.Deliver(centered(*now))
	o.controlTick(1)

	// Jump past the hard timeout.
	*now += 1.5
	o.controlTick(2)

	cmds := sink.all()
	lastCmd := cmds[len(cmds)-1]
	if lastCmd.Type != tracking.CommandVelocity || lastCmd.Yaw != 0 || lastCmd.Pitch != 0 {
		t.Errorf("expected a velocity-zero command at the hard timeout, got %+v", lastCmd)
	}
}

func TestListener_Handle(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	l := NewListener("tcp://*:0", o, nil)

	reply := l.handle([]byte(`{"command": "track", "target": "bottle"}`))
	if reply.Status != "ok" {
		t.Errorf("track status = %q, want ok", reply.Status)
	}
	if o.Target() != "bottle" {
		t.Errorf("target = %q, want bottle", o.Target())
	}
	if reply.ID == "" {
		t.Error("reply carries no request id")
	}

	reply = l.handle([]byte(`{"command": "stop_track"}`))
	if reply.Status != "ok" {
		t.Errorf("stop status = %q, want ok", reply.Status)
	}
	if o.Target() != "" {
		t.Errorf("target = %q after stop, want empty", o.Target())
	}

	reply = l.handle([]byte(`{"command": "dance"}`))
	if reply.Status != "error" {
		t.Errorf("unknown command status = %q, want error", reply.Status)
	}

	reply = l.handle([]byte(`not json`))
	if reply.Status != "error" {
		t.Errorf("malformed command status = %q, want error", reply.Status)
	}
}
