// Package vision receives the robot's camera stream.
//
// Frames arrive over a ZeroMQ PUB channel as [topic, header, payload]
// triples, where the header is the capture timestamp (8-byte little-endian
// float64, same clock as the joint-state publisher) and the payload is a raw
// image whose encoding is inferred from its byte length. Delivery is
// last-value-wins: the receive loop overwrites a single-slot frame mailbox
// and a worker drains the newest, so a slow consumer never builds a queue.
package vision

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pepper/pkg/bus"
)

// Frame is one decoded camera frame. The callback borrows Image for the
// duration of the call; the receiver closes it afterwards.
type Frame struct {
	Timestamp float64
	Image     gocv.Mat
	Width     int
	Height    int
}

// Callback is invoked on the worker goroutine for each delivered frame.
type Callback func(Frame)

// Receiver subscribes to the video channel and delivers decoded BGR frames.
type Receiver struct {
	uri      string
	logger   *slog.Logger
	callback Callback

	// Single-slot frame mailbox (conflate).
	slotMu sync.Mutex
	slot   *rawFrame
	notify chan struct{}

	mu       sync.Mutex
	cancel   context.CancelFunc
	sock     zmq4.Socket
	recvDone chan struct{}
	workDone chan struct{}
	running  bool

	now func() float64
}

type rawFrame struct {
	timestamp float64
	payload   []byte
}

// NewReceiver creates a receiver for the video publisher at uri.
func NewReceiver(uri string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		uri:    uri,
		logger: logger.With("component", "vision"),
		notify: make(chan struct{}, 1),
		now:    func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// Start registers the frame callback and launches the receive and worker
// loops. The callback runs on the worker goroutine.
func (r *Receiver) Start(ctx context.Context, cb Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := bus.DialSub(ctx, r.uri, bus.TopicVideo, r.logger)
	if err != nil {
		cancel()
		return err
	}

	r.callback = cb
	r.cancel = cancel
	r.sock = sub
	r.recvDone = make(chan struct{})
	r.workDone = make(chan struct{})
	r.running = true

	go func() {
		defer close(r.recvDone)

		for {
			msg, err := sub.Recv()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r.logger.Info("video subscription recv failed", "error", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}
			r.store(msg.Frames)
		}
	}()

	go func() {
		defer close(r.workDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.notify:
			}

			raw := r.take()
			if raw == nil {
				continue
			}

			img, w, h, err := decodeFrame(raw.payload)
			if err != nil {
				r.logger.Warn("frame discarded", "error", err)
				continue
			}

			r.callback(Frame{Timestamp: raw.timestamp, Image: img, Width: w, Height: h})
			img.Close()
		}
	}()

	return nil
}

// Stop terminates both loops and waits for them to exit.
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
	<-r.recvDone
	<-r.workDone
}

// store overwrites the frame slot with the newest message.
func (r *Receiver) store(frames [][]byte) {
	var ts float64
	var payload []byte

	switch len(frames) {
	case 3:
		header := frames[1]
		if len(header) != 8 {
			r.logger.Warn("invalid frame header", "bytes", len(header))
			return
		}
		ts = math.Float64frombits(binary.LittleEndian.Uint64(header))
		payload = frames[2]
	case 2:
		// Legacy two-frame form without a header; stamp on arrival.
		ts = r.now()
		payload = frames[1]
	default:
		r.logger.Warn("invalid video message", "frames", len(frames))
		return
	}

	r.slotMu.Lock()
	r.slot = &rawFrame{timestamp: ts, payload: payload}
	r.slotMu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// take consumes the frame slot.
func (r *Receiver) take() *rawFrame {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()
	raw := r.slot
	r.slot = nil
	return raw
}
