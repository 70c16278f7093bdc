package actuation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-pepper/pkg/tracking"
)

// fakeRobot records RPC calls.
type fakeRobot struct {
	mu        sync.Mutex
	angles    [][]float64
	speeds    []float64
	stiffness []float64
	fail      bool
}

func (f *fakeRobot) SetAngles(names []string, angles []float64, speed float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("rejected")
	}
	cp := make([]float64, len(angles))
	copy(cp, angles)
	f.angles = append(f.angles, cp)
	f.speeds = append(f.speeds, speed)
	return nil
}

func (f *fakeRobot) SetStiffnesses(chain string, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stiffness = append(f.stiffness, value)
	return nil
}

func (f *fakeRobot) sent() [][]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]float64, len(f.angles))
	copy(out, f.angles)
	return out
}

func TestActuator_ForwardsPosition(t *testing.T) {
	fr := &fakeRobot{}
	a := New(fr, 2*time.Millisecond, nil)
	a.Start()
	defer a.Stop()

	a.Send(tracking.PositionCommand(0.5, -0.25, 0.2))

	deadline := time.After(time.Second)
	for {
		if len(fr.sent()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("command never forwarded")
		case <-time.After(time.Millisecond):
		}
	}

	got := fr.sent()[0]
	if got[0] != 0.5 || got[1] != -0.25 {
		t.Errorf("angles = %v, want [0.5, -0.25]", got)
	}
}

func TestActuator_FreshestWins(t *testing.T) {
	fr := &fakeRobot{}
	// Slow loop so all three writes land between ticks.
	a := New(fr, 50*time.Millisecond, nil)

	a.Send(tracking.PositionCommand(0.1, 0, 0.2))
	a.Send(tracking.PositionCommand(0.2, 0, 0.2))
	a.Send(tracking.PositionCommand(0.3, 0, 0.2))

	a.Start()
	time.Sleep(120 * time.Millisecond)
	a.Stop()

	sent := fr.sent()
	if len(sent) != 1 {
		t.Fatalf("forwarded %d commands, want exactly 1", len(sent))
	}
	if sent[0][0] != 0.3 {
		t.Errorf("forwarded yaw %v, want the freshest 0.3", sent[0][0])
	}
}

func TestActuator_VelocityReserved(t *testing.T) {
	fr := &fakeRobot{}
	a := New(fr, 2*time.Millisecond, nil)
	a.Start()
	defer a.Stop()

	a.Send(tracking.VelocityCommand(1.0, 1.0))
	time.Sleep(20 * time.Millisecond)

	if len(fr.sent()) != 0 {
		t.Errorf("velocity command reached the robot: %v", fr.sent())
	}
}

func TestActuator_StiffnessBypassesMailbox(t *testing.T) {
	fr := &fakeRobot{}
	a := New(fr, 50*time.Millisecond, nil)

	// Not started: stiffness must still go through immediately.
	if err := a.SetStiffness(0.65); err != nil {
		t.Fatalf("SetStiffness: %v", err)
	}

	fr.mu.Lock()
	defer fr.mu.Unlock()
	if len(fr.stiffness) != 1 || fr.stiffness[0] != 0.65 {
		t.Errorf("stiffness calls = %v, want [0.65]", fr.stiffness)
	}
}

func TestActuator_ContinuesAfterRPCError(t *testing.T) {
	fr := &fakeRobot{fail: true}
	a := New(fr, 2*time.Millisecond, nil)
	a.Start()
	defer a.Stop()

	a.Send(tracking.PositionCommand(0.1, 0, 0.2))
	time.Sleep(20 * time.Millisecond)

	fr.mu.Lock()
	fr.fail = false
	fr.mu.Unlock()

	a.Send(tracking.PositionCommand(0.2, 0, 0.2))

	deadline := time.After(time.Second)
	for {
		if len(fr.sent()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("actuator did not recover after an RPC error")
		case <-time.After(time.Millisecond):
		}
	}
}
