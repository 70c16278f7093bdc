// Package state maintains a time-indexed buffer of joint-angle telemetry.
//
// The robot middleware publishes head joint samples at ~50 Hz. The tracking
// core queries the buffer at frame-capture time to recover the head pose the
// camera actually had when a frame was taken (ego-motion compensation), and
// at tick time for the scheduler's measured angle.
package state

import (
	"sort"
	"sync"
)

// slack is the tolerated distance (seconds) outside the buffered window.
// Queries older than the window by more than slack return nothing; queries
// newer than the window clamp to the latest sample.
const slack = 0.05

// DefaultCapacity holds ~4 s of samples at the nominal 50 Hz publish rate.
const DefaultCapacity = 200

// Sample is one joint-state record. Angles are radians.
type Sample struct {
	Timestamp float64
	Yaw       float64
	Pitch     float64
}

// Angles is a head pose pair in radians.
type Angles struct {
	Yaw   float64
	Pitch float64
}

// Buffer is a bounded, append-only-in-time ring of joint samples.
type Buffer struct {
	mu   sync.Mutex
	ring []Sample
	head int // next write position
	size int
}

// NewBuffer creates a buffer holding up to capacity samples.
// capacity <= 0 uses DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{ring: make([]Sample, capacity)}
}

// Push inserts a sample. Out-of-order samples are dropped; when the ring is
// full the oldest sample is evicted.
func (b *Buffer) Push(s Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size > 0 && s.Timestamp < b.nth(b.size-1).Timestamp {
		return false
	}

	b.ring[b.head] = s
	b.head = (b.head + 1) % len(b.ring)
	if b.size < len(b.ring) {
		b.size++
	}
	return true
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// At returns the head angles interpolated at query time t.
//
// Returns false if the buffer is empty or t precedes the window by more than
// 50 ms. Queries past the newest sample clamp to it. Otherwise the two
// bracketing samples are found by binary search and both axes are linearly
// interpolated.
func (b *Buffer) At(t float64) (Angles, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return Angles{}, false
	}

	oldest := b.nth(0)
	newest := b.nth(b.size - 1)

	if t < oldest.Timestamp-slack {
		return Angles{}, false
	}
	if t > newest.Timestamp+slack {
		return Angles{Yaw: newest.Yaw, Pitch: newest.Pitch}, true
	}

	// First logical index whose timestamp exceeds t.
	idx := sort.Search(b.size, func(i int) bool {
		return b.nth(i).Timestamp > t
	})

	if idx == 0 {
		return Angles{Yaw: oldest.Yaw, Pitch: oldest.Pitch}, true
	}
	if idx == b.size {
		return Angles{Yaw: newest.Yaw, Pitch: newest.Pitch}, true
	}

	s0 := b.nth(idx - 1)
	s1 := b.nth(idx)

	alpha := 0.0
	if dt := s1.Timestamp - s0.Timestamp; dt > 0 {
		alpha = (t - s0.Timestamp) / dt
	}

	return Angles{
		Yaw:   s0.Yaw + alpha*(s1.Yaw-s0.Yaw),
		Pitch: s0.Pitch + alpha*(s1.Pitch-s0.Pitch),
	}, true
}

// nth returns the logical i-th sample, oldest first. Caller holds the lock.
func (b *Buffer) nth(i int) Sample {
	n := len(b.ring)
	return b.ring[((b.head-b.size+i)%n+n)%n]
}
