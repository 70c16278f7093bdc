package tracking

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// TickLogger writes per-tick control values to a CSV file for offline
// tuning analysis. Disabled unless attached to a tracker.
type TickLogger struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewTickLogger opens path for writing and emits the header row.
func NewTickLogger(path string) (*TickLogger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "target_yaw", "curr_yaw", "error_raw", "cmd_yaw", "latency"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write telemetry header: %w", err)
	}
	w.Flush()

	return &TickLogger{file: f, writer: w, start: time.Now()}, nil
}

// Log appends one tick row.
func (l *TickLogger) Log(targetYaw, currYaw, errRaw, cmdYaw, latency float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return
	}

	row := []string{
		strconv.FormatFloat(time.Since(l.start).Seconds(), 'f', 4, 64),
		strconv.FormatFloat(targetYaw, 'f', 4, 64),
		strconv.FormatFloat(currYaw, 'f', 4, 64),
		strconv.FormatFloat(errRaw, 'f', 4, 64),
		strconv.FormatFloat(cmdYaw, 'f', 4, 64),
		strconv.FormatFloat(latency, 'f', 4, 64),
	}
	l.writer.Write(row)
	l.writer.Flush()
}

// Close flushes and closes the underlying file.
func (l *TickLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	err := l.file.Close()
	l.file = nil
	l.writer = nil
	return err
}
