// Package bus provides the ZeroMQ transport layer for go-pepper.
//
// The robot middleware publishes video frames and joint telemetry over
// PUB sockets, the perception service answers over REQ/REP, and the
// external command channel is a REP socket bound by this process. This
// package owns endpoint configuration, topic names, and socket
// construction; components own their receive loops.
package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-zeromq/zmq4"
)

// Topic names on the middleware's publish channels.
const (
	// TopicVideo carries [topic, header, payload] frame triples.
	TopicVideo = "video"

	// TopicJoints carries [topic, record] joint-state pairs.
	TopicJoints = "joints"
)

// Config holds the transport endpoints.
type Config struct {
	// VideoURI is the video streamer's PUB endpoint.
	VideoURI string

	// JointsURI is the joint-state publisher's PUB endpoint.
	JointsURI string

	// PerceptionURI is the inference service's REP endpoint.
	PerceptionURI string

	// CommandBind is the local bind address for the external command REP socket.
	CommandBind string
}

// Validate checks that all endpoints are set.
func (c Config) Validate() error {
	if c.VideoURI == "" {
		return fmt.Errorf("bus: video URI is required")
	}
	if c.JointsURI == "" {
		return fmt.Errorf("bus: joints URI is required")
	}
	if c.PerceptionURI == "" {
		return fmt.Errorf("bus: perception URI is required")
	}
	if c.CommandBind == "" {
		return fmt.Errorf("bus: command bind address is required")
	}
	return nil
}

// DialSub connects a SUB socket to uri filtered on topic.
func DialSub(ctx context.Context, uri, topic string, logger *slog.Logger) (zmq4.Socket, error) {
	sub := zmq4.NewSub(ctx)
	if err := sub.Dial(uri); err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", uri, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %q on %s: %w", topic, uri, err)
	}
	if logger != nil {
		logger.Info("subscribed", "uri", uri, "topic", topic)
	}
	return sub, nil
}

// DialReq connects a REQ socket to uri.
func DialReq(ctx context.Context, uri string, logger *slog.Logger) (zmq4.Socket, error) {
	req := zmq4.NewReq(ctx)
	if err := req.Dial(uri); err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", uri, err)
	}
	if logger != nil {
		logger.Debug("request socket connected", "uri", uri)
	}
	return req, nil
}

// ListenRep binds a REP socket on addr.
func ListenRep(ctx context.Context, addr string, logger *slog.Logger) (zmq4.Socket, error) {
	rep := zmq4.NewRep(ctx)
	if err := rep.Listen(addr); err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	if logger != nil {
		logger.Info("reply socket bound", "addr", addr)
	}
	return rep, nil
}
