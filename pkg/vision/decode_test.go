package vision

import "testing"

func TestFormatForSize(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		width  int
		height int
		ok     bool
	}{
		{"grey qvga", 76800, 320, 240, true},
		{"yuyv qvga", 153600, 320, 240, true},
		{"rgb qvga", 230400, 320, 240, true},
		{"rgb vga", 921600, 640, 480, true},
		{"empty", 0, 0, 0, false},
		{"truncated", 76799, 0, 0, false},
		{"oversized", 921601, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := formatForSize(tt.size)
			if ok != tt.ok {
				t.Fatalf("formatForSize(%d) ok = %v, want %v", tt.size, ok, tt.ok)
			}
			if !ok {
				return
			}
			if f.width != tt.width || f.height != tt.height {
				t.Errorf("formatForSize(%d) = %dx%d, want %dx%d",
					tt.size, f.width, f.height, tt.width, tt.height)
			}
			if f.width*f.height*f.channels != tt.size {
				t.Errorf("format geometry %dx%dx%d does not cover %d bytes",
					f.width, f.height, f.channels, tt.size)
			}
		})
	}
}
