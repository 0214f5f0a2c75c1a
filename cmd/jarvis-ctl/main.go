package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"jarvis/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	timeout := cli.DurationP("timeout", "t", 2*time.Minute, "How long to wait for the reply")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: jarvis-ctl [flags] trigger | say <text> | file <path> | status")
		cli.PrintDefaults()
	}
	cli.Parse()

	msg, err := buildMessage(cli.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cli.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := ipc.SendCommand(ctx, *socket, msg)
	if err != nil {
		fmt.Println("jarvis-daemon not running:", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(reply, "", "  ")
	fmt.Println(string(out))

	if !reply.OK {
		os.Exit(1)
	}
}

func buildMessage(args []string) (ipc.ControlMessage, error) {
	if len(args) == 0 {
		return ipc.ControlMessage{Cmd: ipc.CmdTrigger}, nil
	}

	rest := strings.Join(args[1:], " ")

	switch cmd := args[0]; cmd {
	case ipc.CmdTrigger, ipc.CmdStatus:
		return ipc.ControlMessage{Cmd: cmd}, nil
	case ipc.CmdSay:
		if rest == "" {
			return ipc.ControlMessage{}, fmt.Errorf("say: missing text")
		}
		return ipc.ControlMessage{Cmd: cmd, Text: rest}, nil
	case ipc.CmdFile:
		if rest == "" {
			return ipc.ControlMessage{}, fmt.Errorf("file: missing path")
		}
		return ipc.ControlMessage{Cmd: cmd, Path: rest}, nil
	default:
		return ipc.ControlMessage{}, fmt.Errorf("unknown command %q", cmd)
	}
}
