package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-pepper/pkg/bus"
)

// requestTimeout is the perception round-trip budget. A REQ socket that
// missed its reply is stuck, so on timeout the socket is torn down and
// re-dialed.
const requestTimeout = time.Second

// Client is a request/reply client for the external inference service.
// It is single-threaded from the caller's perspective; concurrent calls
// are serialized.
type Client struct {
	uri    string
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	sock   zmq4.Socket
	closed bool
}

// NewClient connects a client to the inference service at uri.
func NewClient(ctx context.Context, uri string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "perception")

	sock, err := bus.DialReq(ctx, uri, logger)
	if err != nil {
		return nil, err
	}
	return &Client{uri: uri, logger: logger, ctx: ctx, sock: sock}, nil
}

// Detect sends a BGR frame to the inference service and returns the parsed
// reply. Returns ErrTimeout (with the socket already reset) when the service
// does not answer within the round-trip budget.
func (c *Client) Detect(img gocv.Mat, target string) (*ReplyData, error) {
	jpeg, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	return c.roundTrip(jpeg, target)
}

// DetectJPEG is Detect for a frame already encoded as JPEG.
func (c *Client) DetectJPEG(jpeg []byte, target string) (*ReplyData, error) {
	return c.roundTrip(jpeg, target)
}

func (c *Client) roundTrip(jpeg []byte, target string) (*ReplyData, error) {
	meta := map[string]string{}
	if target != "" {
		meta["target"] = target
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request metadata: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	sock := c.sock
	type result struct {
		msg zmq4.Msg
		err error
	}
	done := make(chan result, 1)

	go func() {
		if err := sock.Send(zmq4.NewMsgFrom(metaBytes, jpeg)); err != nil {
			done <- result{err: fmt.Errorf("perception send failed: %w", err)}
			return
		}
		msg, err := sock.Recv()
		if err != nil {
			err = fmt.Errorf("perception recv failed: %w", err)
		}
		done <- result{msg: msg, err: err}
	}()

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			// A failed exchange leaves the REQ socket unusable; re-dial it.
			c.resetLocked()
			return nil, res.err
		}
		return ParseReply(res.msg.Bytes())
	case <-timer.C:
		// The pending-reply state is not recoverable; reset the socket.
		c.resetLocked()
		return nil, ErrTimeout
	}
}

// resetLocked tears down and re-dials the request socket. Caller holds the lock.
func (c *Client) resetLocked() {
	c.sock.Close()

	sock, err := bus.DialReq(c.ctx, c.uri, c.logger)
	if err != nil {
		c.logger.Warn("perception socket re-dial failed", "error", err)
		// Keep the closed socket; the next call will fail fast and retry.
		return
	}
	c.sock = sock
	c.logger.Info("perception socket reset after timeout")
}

// Close shuts the client down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}

// encodeJPEG compresses a BGR frame for transport.
func encodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
