package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"

	"github.com/teslashibe/go-pepper/pkg/bus"
)

// commandRequest is the external command wire format.
type commandRequest struct {
	Command string `json:"command"`
	Target  string `json:"target"`
}

// commandReply is the reply wire format.
type commandReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// TargetSetter is the orchestrator surface the listener drives.
type TargetSetter interface {
	SetTarget(label string)
}

// Listener answers external JSON commands on a REP socket:
// {"command": "track", "target": <label>} and {"command": "stop_track"}.
type Listener struct {
	bind    string
	handler TargetSetter
	logger  *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	sock    zmq4.Socket
	done    chan struct{}
	running bool
}

// NewListener creates a listener bound to bind, driving handler.
func NewListener(bind string, handler TargetSetter, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		bind:    bind,
		handler: handler,
		logger:  logger.With("component", "commands"),
	}
}

// Start binds the socket and launches the reply loop. A bind failure is
// returned so the caller can disable the feature and keep the core running.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	sock, err := bus.ListenRep(ctx, l.bind, l.logger)
	if err != nil {
		cancel()
		return fmt.Errorf("command listener unavailable: %w", err)
	}

	l.cancel = cancel
	l.sock = sock
	l.done = make(chan struct{})
	l.running = true

	go func() {
		defer close(l.done)

		for {
			msg, err := sock.Recv()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				l.logger.Info("command recv failed", "error", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}

			reply := l.handle(msg.Bytes())
			raw, err := json.Marshal(reply)
			if err != nil {
				raw = []byte(`{"status":"error","message":"internal encode failure"}`)
			}
			if err := sock.Send(zmq4.NewMsg(raw)); err != nil {
				l.logger.Info("command reply failed", "error", err)
			}
		}
	}()

	return nil
}

// Stop terminates the reply loop.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}
	l.running = false
	l.cancel()
	// Closing the socket unblocks a pending Recv.
	l.sock.Close()
	<-l.done
}

// handle dispatches one raw command and builds the reply.
func (l *Listener) handle(raw []byte) commandReply {
	reply := commandReply{Status: "ok", Message: "command received", ID: uuid.NewString()}

	var req commandRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		reply.Status = "error"
		reply.Message = fmt.Sprintf("malformed command: %v", err)
		return reply
	}

	switch req.Command {
	case "track":
		if req.Target == "" {
			l.handler.SetTarget("")
			reply.Message = "tracking stopped"
		} else {
			l.handler.SetTarget(req.Target)
			reply.Message = fmt.Sprintf("tracking %s", req.Target)
		}
	case "stop_track":
		l.handler.SetTarget("")
		reply.Message = "tracking stopped"
	default:
		reply.Status = "error"
		reply.Message = fmt.Sprintf("unknown command %q", req.Command)
	}

	return reply
}
