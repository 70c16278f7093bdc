package vision

import (
	"fmt"

	"gocv.io/x/gocv"
)

// frameFormat describes one of the raw payload encodings the streamer emits.
// Encodings are distinguished solely by byte length.
type frameFormat struct {
	width    int
	height   int
	channels int
	convert  gocv.ColorConversionCode
}

// formatForSize maps a payload byte length to its frame format.
// Returns false for unknown sizes.
func formatForSize(n int) (frameFormat, bool) {
	switch n {
	case 320 * 240 * 1: // greyscale QVGA
		return frameFormat{320, 240, 1, gocv.ColorGrayToBGR}, true
	case 320 * 240 * 2: // YUYV-422 QVGA
		return frameFormat{320, 240, 2, gocv.ColorYUVToBGRYUY2}, true
	case 320 * 240 * 3: // RGB QVGA
		// RGB<->BGR is the same channel swap in both directions.
		return frameFormat{320, 240, 3, gocv.ColorBGRToRGB}, true
	case 640 * 480 * 3: // RGB VGA
		return frameFormat{640, 480, 3, gocv.ColorBGRToRGB}, true
	}
	return frameFormat{}, false
}

// matType returns the Mat element type for the format's channel count.
func (f frameFormat) matType() gocv.MatType {
	switch f.channels {
	case 1:
		return gocv.MatTypeCV8UC1
	case 2:
		return gocv.MatTypeCV8UC2
	default:
		return gocv.MatTypeCV8UC3
	}
}

// decodeFrame converts a raw payload into a BGR Mat.
// The caller owns the returned Mat and must Close it.
func decodeFrame(payload []byte) (gocv.Mat, int, int, error) {
	f, ok := formatForSize(len(payload))
	if !ok {
		return gocv.NewMat(), 0, 0, fmt.Errorf("unknown frame payload size %d", len(payload))
	}

	raw, err := gocv.NewMatFromBytes(f.height, f.width, f.matType(), payload)
	if err != nil {
		return gocv.NewMat(), 0, 0, fmt.Errorf("failed to wrap frame bytes: %w", err)
	}
	defer raw.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(raw, &bgr, f.convert)
	if bgr.Empty() {
		bgr.Close()
		return gocv.NewMat(), 0, 0, fmt.Errorf("color conversion produced an empty frame")
	}
	return bgr, f.width, f.height, nil
}
