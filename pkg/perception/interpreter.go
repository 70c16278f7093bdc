package perception

import (
	"strings"

	"github.com/teslashibe/go-pepper/pkg/state"
)

// confidenceFloor is the minimum detector confidence an accepted box must
// exceed.
const confidenceFloor = 0.25

// headBiasFraction keeps the top fraction of a human box so the fixation
// point lands near the head rather than the torso.
const headBiasFraction = 0.4

// humanLabels are the target labels treated as a person.
var humanLabels = map[string]bool{
	"person": true,
	"human":  true,
	"face":   true,
	"man":    true,
	"woman":  true,
}

// IsHumanLabel reports whether label denotes a human target.
func IsHumanLabel(label string) bool {
	return humanLabels[strings.ToLower(label)]
}

// Interpreter converts raw perception replies into Detections for one frame
// geometry. It is pure and stateless.
type Interpreter struct {
	Width  int
	Height int
}

// NewInterpreter creates an interpreter for frames of the given dimensions.
func NewInterpreter(width, height int) Interpreter {
	return Interpreter{Width: width, Height: height}
}

// Interpret selects the best detection for target from data.
//
// Pose landmarks take primacy for human targets: the nose landmark becomes a
// point detection with confidence 1. Otherwise the highest-confidence box
// whose class matches the target (above the confidence floor) is selected,
// and human boxes are biased toward the head. Returns nil when nothing
// matches.
func (ip Interpreter) Interpret(data *ReplyData, target string, timestamp float64, sourceAngles *state.Angles) *Detection {
	if data == nil || target == "" {
		return nil
	}

	if IsHumanLabel(target) && len(data.Landmarks) > 0 {
		// Landmark index 0 is the nose.
		nose := data.Landmarks[0]
		nx := nose.X * float64(ip.Width)
		ny := nose.Y * float64(ip.Height)
		return &Detection{
			Label:        target,
			Confidence:   1.0,
			BBox:         BBox{XMin: nx, YMin: ny, XMax: nx, YMax: ny},
			Timestamp:    timestamp,
			SourceAngles: sourceAngles,
		}
	}

	var best *BoxDetection
	for i := range data.Boxes {
		box := &data.Boxes[i]
		if box.Class != target || box.Confidence <= confidenceFloor {
			continue
		}
		if best == nil || box.Confidence > best.Confidence {
			best = box
		}
	}
	if best == nil {
		return nil
	}

	bbox := BBox{XMin: best.BBox[0], YMin: best.BBox[1], XMax: best.BBox[2], YMax: best.BBox[3]}
	if IsHumanLabel(best.Class) {
		bbox.YMax = bbox.YMin + headBiasFraction*(bbox.YMax-bbox.YMin)
	}

	return &Detection{
		Label:        target,
		Confidence:   best.Confidence,
		BBox:         bbox,
		Timestamp:    timestamp,
		SourceAngles: sourceAngles,
	}
}
