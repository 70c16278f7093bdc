// trackctl sends one tracking command to a running pepperd over its
// external command channel.
//
// Usage:
//
//	trackctl track person
//	trackctl stop
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-zeromq/zmq4"
)

func main() {
	addr := flag.String("addr", "tcp://localhost:5561", "pepperd command endpoint")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	var payload map[string]string
	switch args[0] {
	case "track":
		if len(args) != 2 {
			usage()
		}
		payload = map[string]string{"command": "track", "target": args[1]}
	case "stop":
		payload = map[string]string{"command": "stop_track"}
	default:
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req := zmq4.NewReq(ctx)
	defer req.Close()

	if err := req.Dial(*addr); err != nil {
		fail("dial %s: %v", *addr, err)
	}

	raw, _ := json.Marshal(payload)
	if err := req.Send(zmq4.NewMsg(raw)); err != nil {
		fail("send: %v", err)
	}

	reply, err := req.Recv()
	if err != nil {
		fail("no reply from %s: %v", *addr, err)
	}

	var decoded struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(reply.Bytes(), &decoded); err != nil {
		fail("bad reply: %v", err)
	}

	fmt.Printf("%s: %s\n", decoded.Status, decoded.Message)
	if decoded.Status != "ok" {
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: trackctl [-addr uri] track <label> | stop")
	os.Exit(2)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
