// mockrobot simulates the robot middleware for bring-up without hardware:
// it publishes synthetic video frames and joint-state records over ZeroMQ
// and answers perception requests with a scripted detection orbiting the
// frame center.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/teslashibe/go-pepper/internal/log"
)

const (
	frameWidth  = 320
	frameHeight = 240
)

func main() {
	videoBind := flag.String("video", "tcp://*:5559", "video PUB bind address")
	jointsBind := flag.String("joints", "tcp://*:5560", "joint-state PUB bind address")
	percepBind := flag.String("perception", "tcp://*:5557", "perception REP bind address")
	label := flag.String("label", "person", "detection class to serve")
	flag.Parse()

	log.Init("info")
	logger := log.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	video := zmq4.NewPub(ctx)
	if err := video.Listen(*videoBind); err != nil {
		logger.Error("video bind failed", "error", err)
		os.Exit(1)
	}
	defer video.Close()

	joints := zmq4.NewPub(ctx)
	if err := joints.Listen(*jointsBind); err != nil {
		logger.Error("joints bind failed", "error", err)
		os.Exit(1)
	}
	defer joints.Close()

	percep := zmq4.NewRep(ctx)
	if err := percep.Listen(*percepBind); err != nil {
		logger.Error("perception bind failed", "error", err)
		os.Exit(1)
	}
	defer percep.Close()

	logger.Info("mockrobot running",
		"video", *videoBind, "joints", *jointsBind, "perception", *percepBind)

	go publishVideo(ctx, video, logger)
	go publishJoints(ctx, joints)
	go answerPerception(ctx, percep, *label, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("stopping")
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// publishVideo emits greyscale QVGA frames at 10 Hz.
func publishVideo(ctx context.Context, pub zmq4.Socket, logger *slog.Logger) {
	payload := make([]byte, frameWidth*frameHeight)
	header := make([]byte, 8)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			binary.LittleEndian.PutUint64(header, math.Float64bits(nowSeconds()))
			msg := zmq4.NewMsgFrom([]byte("video"), header, payload)
			if err := pub.Send(msg); err != nil {
				logger.Warn("video publish failed", "error", err)
			}
		}
	}
}

// publishJoints emits a slow head sway at 50 Hz.
func publishJoints(ctx context.Context, pub zmq4.Socket) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t := nowSeconds()
			record := make([]byte, 16)
			binary.LittleEndian.PutUint64(record[0:8], math.Float64bits(t))
			binary.LittleEndian.PutUint32(record[8:12], math.Float32bits(float32(0.1*math.Sin(t/4))))
			binary.LittleEndian.PutUint32(record[12:16], math.Float32bits(0))
			pub.Send(zmq4.NewMsgFrom([]byte("joints"), record))
		}
	}
}

// answerPerception serves a detection orbiting the frame center.
func answerPerception(ctx context.Context, rep zmq4.Socket, label string, logger *slog.Logger) {
	for {
		msg, err := rep.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Warn("perception recv failed", "error", err)
			continue
		}
		_ = msg // metadata and jpeg are ignored by the mock

		t := nowSeconds()
		cx := float64(frameWidth)/2 + 60*math.Cos(t/2)
		cy := float64(frameHeight)/2 + 40*math.Sin(t/2)

		reply := map[string]interface{}{
			"data": []map[string]interface{}{
				{
					"class":      label,
					"confidence": 0.9,
					"bbox":       []float64{cx - 20, cy - 30, cx + 20, cy + 30},
				},
			},
		}
		raw, _ := json.Marshal(reply)
		if err := rep.Send(zmq4.NewMsg(raw)); err != nil {
			logger.Warn("perception reply failed", "error", err)
		}
	}
}
