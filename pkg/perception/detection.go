// Package perception talks to the external inference service and
// normalizes its heterogeneous replies into Detection values.
package perception

import "github.com/teslashibe/go-pepper/pkg/state"

// BBox is an axis-aligned bounding box in pixel coordinates.
// Invariant: XMax >= XMin and YMax >= YMin.
type BBox struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// Center returns the box midpoint.
func (b BBox) Center() (x, y float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// Detection is one normalized perception result. Created by the Interpreter
// per accepted detection, consumed at most once by the control thread.
type Detection struct {
	// Label is the target label the detection matched.
	Label string

	// Confidence in [0, 1].
	Confidence float64

	// BBox in pixel coordinates of the source frame.
	BBox BBox

	// Timestamp is the frame capture time (monotonic seconds).
	Timestamp float64

	// SourceAngles holds the head angles at capture time when the state
	// buffer could resolve them. Nil otherwise.
	SourceAngles *state.Angles
}
