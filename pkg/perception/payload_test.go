package perception

import "testing"

func TestParseReply_ListForm(t *testing.T) {
	raw := []byte(`{"data": [{"class": "cup", "confidence": 0.7, "bbox": [1, 2, 3, 4]}]}`)

	data, err := ParseReply(raw)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if len(data.Boxes) != 1 {
		t.Fatalf("boxes = %d, want 1", len(data.Boxes))
	}
	box := data.Boxes[0]
	if box.Class != "cup" || box.Confidence != 0.7 || box.BBox != [4]float64{1, 2, 3, 4} {
		t.Errorf("box = %+v", box)
	}
	if len(data.Landmarks) != 0 {
		t.Errorf("landmarks = %d, want 0", len(data.Landmarks))
	}
}

func TestParseReply_ObjectForm(t *testing.T) {
	raw := []byte(`{
		"data": {
			"detections": [{"class": "person", "confidence": 0.9, "bbox": [0, 0, 50, 100]}],
			"pose_landmarks": [{"x": 0.5, "y": 0.3, "visibility": 0.95}]
		}
	}`)

	data, err := ParseReply(raw)
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if len(data.Boxes) != 1 || len(data.Landmarks) != 1 {
		t.Fatalf("boxes = %d landmarks = %d", len(data.Boxes), len(data.Landmarks))
	}
	lm := data.Landmarks[0]
	if lm.X != 0.5 || lm.Y != 0.3 || lm.Visibility != 0.95 {
		t.Errorf("landmark = %+v", lm)
	}
}

func TestParseReply_EmptyData(t *testing.T) {
	for _, raw := range []string{`{}`, `{"data": []}`, `{"data": {}}`} {
		data, err := ParseReply([]byte(raw))
		if err != nil {
			t.Fatalf("ParseReply(%s): %v", raw, err)
		}
		if len(data.Boxes) != 0 || len(data.Landmarks) != 0 {
			t.Errorf("ParseReply(%s) = %+v, want empty", raw, data)
		}
	}
}

func TestParseReply_Malformed(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{"data": 42}`} {
		if _, err := ParseReply([]byte(raw)); err == nil {
			t.Errorf("ParseReply(%q) succeeded, want error", raw)
		}
	}
}
