package perception

import (
	"math"
	"reflect"
	"testing"

	"github.com/teslashibe/go-pepper/pkg/state"
)

func TestInterpret_LandmarkPrimacy(t *testing.T) {
	ip := NewInterpreter(320, 240)
	data := &ReplyData{
		Landmarks: []Landmark{
			{X: 0.5, Y: 0.25, Visibility: 0.9},
			{X: 0.1, Y: 0.1, Visibility: 0.5},
		},
		Boxes: []BoxDetection{
			{Class: "person", Confidence: 0.8, BBox: [4]float64{0, 0, 100, 100}},
		},
	}

	det := ip.Interpret(data, "person", 1.5, nil)
	if det == nil {
		t.Fatal("expected a detection")
	}

	cx, cy := det.BBox.Center()
	if cx != 160 || cy != 60 {
		t.Errorf("nose point = (%v, %v), want (160, 60)", cx, cy)
	}
	if det.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", det.Confidence)
	}
	if det.Timestamp != 1.5 {
		t.Errorf("timestamp = %v, want 1.5", det.Timestamp)
	}
}

func TestInterpret_LandmarksIgnoredForObjects(t *testing.T) {
	ip := NewInterpreter(320, 240)
	data := &ReplyData{
		Landmarks: []Landmark{{X: 0.5, Y: 0.5}},
		Boxes: []BoxDetection{
			{Class: "bottle", Confidence: 0.6, BBox: [4]float64{10, 20, 30, 40}},
		},
	}

	det := ip.Interpret(data, "bottle", 0, nil)
	if det == nil {
		t.Fatal("expected a box detection")
	}
	if det.BBox != (BBox{XMin: 10, YMin: 20, XMax: 30, YMax: 40}) {
		t.Errorf("bbox = %+v", det.BBox)
	}
}

func TestInterpret_HighestConfidenceWins(t *testing.T) {
	ip := NewInterpreter(320, 240)
	data := &ReplyData{
		Boxes: []BoxDetection{
			{Class: "cup", Confidence: 0.4, BBox: [4]float64{0, 0, 10, 10}},
			{Class: "cup", Confidence: 0.9, BBox: [4]float64{50, 50, 60, 60}},
			{Class: "bottle", Confidence: 0.95, BBox: [4]float64{5, 5, 15, 15}},
			{Class: "cup", Confidence: 0.7, BBox: [4]float64{20, 20, 30, 30}},
		},
	}

	det := ip.Interpret(data, "cup", 0, nil)
	if det == nil {
		t.Fatal("expected a detection")
	}
	if det.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", det.Confidence)
	}
}

func TestInterpret_ConfidenceFloor(t *testing.T) {
	ip := NewInterpreter(320, 240)
	data := &ReplyData{
		Boxes: []BoxDetection{
			{Class: "cup", Confidence: 0.25, BBox: [4]float64{0, 0, 10, 10}},
			{Class: "cup", Confidence: 0.10, BBox: [4]float64{0, 0, 10, 10}},
		},
	}

	// Exactly at the floor does not qualify; the floor must be exceeded.
	if det := ip.Interpret(data, "cup", 0, nil); det != nil {
		t.Errorf("expected nil, got %+v", det)
	}
}

func TestInterpret_SocialBias(t *testing.T) {
	ip := NewInterpreter(320, 240)
	data := &ReplyData{
		Boxes: []BoxDetection{
			{Class: "person", Confidence: 0.8, BBox: [4]float64{100, 100, 200, 300}},
		},
	}

	det := ip.Interpret(data, "person", 0, nil)
	if det == nil {
		t.Fatal("expected a detection")
	}

	if det.BBox.YMin != 100 {
		t.Errorf("ymin = %v, want 100 (unchanged)", det.BBox.YMin)
	}
	if math.Abs(det.BBox.YMax-180) > 1e-9 {
		t.Errorf("ymax = %v, want 180", det.BBox.YMax)
	}
	_, cy := det.BBox.Center()
	if math.Abs(cy-140) > 1e-9 {
		t.Errorf("center y = %v, want 140", cy)
	}
}

func TestInterpret_EmptyAndMisses(t *testing.T) {
	ip := NewInterpreter(320, 240)

	if det := ip.Interpret(&ReplyData{}, "person", 0, nil); det != nil {
		t.Errorf("empty payload: got %+v, want nil", det)
	}
	if det := ip.Interpret(nil, "person", 0, nil); det != nil {
		t.Errorf("nil payload: got %+v, want nil", det)
	}
	data := &ReplyData{
		Boxes: []BoxDetection{{Class: "dog", Confidence: 0.9, BBox: [4]float64{0, 0, 10, 10}}},
	}
	if det := ip.Interpret(data, "cat", 0, nil); det != nil {
		t.Errorf("class mismatch: got %+v, want nil", det)
	}
	if det := ip.Interpret(data, "", 0, nil); det != nil {
		t.Errorf("no target: got %+v, want nil", det)
	}
}

func TestInterpret_Deterministic(t *testing.T) {
	ip := NewInterpreter(320, 240)
	angles := &state.Angles{Yaw: 0.1, Pitch: -0.2}
	data := &ReplyData{
		Boxes: []BoxDetection{
			{Class: "person", Confidence: 0.8, BBox: [4]float64{100, 100, 200, 300}},
		},
	}

	a := ip.Interpret(data, "person", 2.0, angles)
	b := ip.Interpret(data, "person", 2.0, angles)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("identical payloads produced different detections: %+v vs %+v", a, b)
	}
}

func TestIsHumanLabel(t *testing.T) {
	for _, label := range []string{"person", "Human", "FACE", "man", "Woman"} {
		if !IsHumanLabel(label) {
			t.Errorf("IsHumanLabel(%q) = false", label)
		}
	}
	for _, label := range []string{"bottle", "dog", ""} {
		if IsHumanLabel(label) {
			t.Errorf("IsHumanLabel(%q) = true", label)
		}
	}
}
