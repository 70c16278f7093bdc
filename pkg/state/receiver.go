package state

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/teslashibe/go-pepper/pkg/bus"
)

// recordSize is a packed joint record: float64 timestamp, float32 yaw,
// float32 pitch.
const recordSize = 16

// Receiver subscribes to the joint-state channel and feeds a Buffer.
type Receiver struct {
	buffer *Buffer
	uri    string
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	sock    zmq4.Socket
	done    chan struct{}
	running bool
}

// NewReceiver creates a receiver feeding buffer from the publisher at uri.
func NewReceiver(buffer *Buffer, uri string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		buffer: buffer,
		uri:    uri,
		logger: logger.With("component", "state"),
	}
}

// Buffer returns the buffer this receiver feeds.
func (r *Receiver) Buffer() *Buffer {
	return r.buffer
}

// Start connects the subscription and launches the receive loop.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := bus.DialSub(ctx, r.uri, bus.TopicJoints, r.logger)
	if err != nil {
		cancel()
		return err
	}

	r.cancel = cancel
	r.sock = sub
	r.done = make(chan struct{})
	r.running = true

	go func() {
		defer close(r.done)

		for {
			msg, err := sub.Recv()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r.logger.Info("joint subscription recv failed", "error", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}

			if len(msg.Frames) != 2 {
				r.logger.Warn("unexpected joint message", "frames", len(msg.Frames))
				continue
			}
			record := msg.Frames[1]
			if len(record) != recordSize {
				r.logger.Warn("unexpected joint record size", "bytes", len(record))
				continue
			}

			r.buffer.Push(decodeRecord(record))
		}
	}()

	return nil
}

// Stop terminates the receive loop and waits for it to exit.
func (r *Receiver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false
	r.cancel()
	// Closing the socket unblocks a pending Recv.
	r.sock.Close()
	<-r.done
}

func decodeRecord(record []byte) Sample {
	ts := math.Float64frombits(binary.LittleEndian.Uint64(record[0:8]))
	yaw := math.Float32frombits(binary.LittleEndian.Uint32(record[8:12]))
	pitch := math.Float32frombits(binary.LittleEndian.Uint32(record[12:16]))
	return Sample{Timestamp: ts, Yaw: float64(yaw), Pitch: float64(pitch)}
}
