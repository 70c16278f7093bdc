package state

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestBuffer_Interpolation(t *testing.T) {
	b := NewBuffer(0)
	b.Push(Sample{Timestamp: 0.00, Yaw: 0.0, Pitch: 0.0})
	b.Push(Sample{Timestamp: 0.10, Yaw: 1.0, Pitch: -1.0})

	a, ok := b.At(0.05)
	if !ok {
		t.Fatal("expected a value at t=0.05")
	}
	if math.Abs(a.Yaw-0.5) > 1e-9 {
		t.Errorf("yaw at midpoint = %v, want 0.5", a.Yaw)
	}
	if math.Abs(a.Pitch+0.5) > 1e-9 {
		t.Errorf("pitch at midpoint = %v, want -0.5", a.Pitch)
	}
}

func TestBuffer_Bounds(t *testing.T) {
	b := NewBuffer(0)
	b.Push(Sample{Timestamp: 0.00, Yaw: 0.0})
	b.Push(Sample{Timestamp: 0.10, Yaw: 1.0})

	// Too old: more than 50ms before the oldest sample.
	if _, ok := b.At(-0.06); ok {
		t.Error("expected no value 60ms before the window")
	}

	// Within the leading slack: clamps to the oldest sample.
	a, ok := b.At(-0.04)
	if !ok || a.Yaw != 0.0 {
		t.Errorf("At(-0.04) = (%v, %v), want oldest sample", a, ok)
	}

	// Newer than the window: clamps to the latest sample.
	a, ok = b.At(0.14)
	if !ok || a.Yaw != 1.0 {
		t.Errorf("At(0.14) = (%v, %v), want latest sample", a, ok)
	}

	// Exactly at the trailing slack boundary.
	a, ok = b.At(0.15)
	if !ok || a.Yaw != 1.0 {
		t.Errorf("At(0.15) = (%v, %v), want latest sample", a, ok)
	}

	// Just past it: still the latest sample (clamp-to-end).
	a, ok = b.At(0.151)
	if !ok || a.Yaw != 1.0 {
		t.Errorf("At(0.151) = (%v, %v), want latest sample", a, ok)
	}
}

func TestBuffer_Empty(t *testing.T) {
	b := NewBuffer(0)
	if _, ok := b.At(0); ok {
		t.Error("expected no value from an empty buffer")
	}
}

func TestBuffer_OutOfOrderDropped(t *testing.T) {
	b := NewBuffer(0)
	b.Push(Sample{Timestamp: 1.0, Yaw: 1.0})
	if b.Push(Sample{Timestamp: 0.5, Yaw: 99.0}) {
		t.Error("expected out-of-order sample to be dropped")
	}
	if b.Len() != 1 {
		t.Errorf("len = %d, want 1", b.Len())
	}

	a, _ := b.At(1.0)
	if a.Yaw != 1.0 {
		t.Errorf("yaw = %v, want 1.0 (stale sample must not land)", a.Yaw)
	}
}

func TestBuffer_EvictsOldest(t *testing.T) {
	b := NewBuffer(4)
	for i := 0; i < 10; i++ {
		b.Push(Sample{Timestamp: float64(i), Yaw: float64(i)})
	}
	if b.Len() != 4 {
		t.Fatalf("len = %d, want 4", b.Len())
	}

	// Oldest surviving sample is t=6.
	if _, ok := b.At(5.0); ok {
		t.Error("expected evicted range to be unavailable")
	}
	a, ok := b.At(6.5)
	if !ok || math.Abs(a.Yaw-6.5) > 1e-9 {
		t.Errorf("At(6.5) = (%v, %v), want interpolated 6.5", a, ok)
	}
}

func TestBuffer_ConvexHull(t *testing.T) {
	b := NewBuffer(0)
	samples := []Sample{
		{Timestamp: 0.0, Yaw: 0.2, Pitch: -0.1},
		{Timestamp: 0.02, Yaw: 0.25, Pitch: -0.12},
		{Timestamp: 0.04, Yaw: 0.22, Pitch: -0.08},
		{Timestamp: 0.06, Yaw: 0.30, Pitch: -0.15},
	}
	for _, s := range samples {
		b.Push(s)
	}

	for q := 0.0; q <= 0.06; q += 0.005 {
		a, ok := b.At(q)
		if !ok {
			t.Fatalf("At(%v) returned no value", q)
		}
		// Find bracketing samples.
		for i := 0; i+1 < len(samples); i++ {
			if q < samples[i].Timestamp || q > samples[i+1].Timestamp {
				continue
			}
			lo, hi := samples[i].Yaw, samples[i+1].Yaw
			if lo > hi {
				lo, hi = hi, lo
			}
			if a.Yaw < lo-1e-12 || a.Yaw > hi+1e-12 {
				t.Errorf("At(%v).Yaw = %v outside [%v, %v]", q, a.Yaw, lo, hi)
			}
		}
	}
}

func TestDecodeRecord(t *testing.T) {
	record := make([]byte, recordSize)
	binary.LittleEndian.PutUint64(record[0:8], math.Float64bits(12.5))
	binary.LittleEndian.PutUint32(record[8:12], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(record[12:16], math.Float32bits(-0.5))

	s := decodeRecord(record)
	if s.Timestamp != 12.5 || s.Yaw != 0.25 || s.Pitch != -0.5 {
		t.Errorf("decodeRecord = %+v", s)
	}
}
