package perception

import (
	"encoding/json"
	"fmt"
)

// BoxDetection is one detector record as the inference service emits it.
type BoxDetection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"` // xmin, ymin, xmax, ymax
}

// Landmark is one pose landmark in 0..1 normalized image coordinates.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// ReplyData is the normalized shape of a perception reply. The service
// returns either a bare detection list or an object that may additionally
// carry pose landmarks; both forms decode into this one struct.
type ReplyData struct {
	Boxes     []BoxDetection
	Landmarks []Landmark
}

// reply is the service's outer envelope.
type reply struct {
	Data json.RawMessage `json:"data"`
}

// objectData is the object form of the data field.
type objectData struct {
	Detections    []BoxDetection `json:"detections"`
	PoseLandmarks []Landmark     `json:"pose_landmarks"`
}

// ParseReply decodes a raw reply payload into ReplyData.
func ParseReply(raw []byte) (*ReplyData, error) {
	var env reply
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed perception reply: %w", err)
	}
	if len(env.Data) == 0 {
		return &ReplyData{}, nil
	}

	// List form: [{class, confidence, bbox}, ...]
	var boxes []BoxDetection
	if err := json.Unmarshal(env.Data, &boxes); err == nil {
		return &ReplyData{Boxes: boxes}, nil
	}

	// Object form: {detections: [...], pose_landmarks: [...]}
	var obj objectData
	if err := json.Unmarshal(env.Data, &obj); err != nil {
		return nil, fmt.Errorf("malformed perception data field: %w", err)
	}
	return &ReplyData{Boxes: obj.Detections, Landmarks: obj.PoseLandmarks}, nil
}
