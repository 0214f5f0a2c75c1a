package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startServer(t *testing.T, h Handler) string {
	t.Helper()

	// unix socket paths are length limited, so avoid deep temp dirs
	dir, err := os.MkdirTemp("", "jarvis")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "s.sock")

	srv, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Serve(ctx, h)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return path
}

func TestRoundTrip(t *testing.T) {
	path := startServer(t, func(_ context.Context, msg ControlMessage) ControlReply {
		switch msg.Cmd {
		case CmdSay:
			return ControlReply{OK: true, Transcript: msg.Text, Reply: "Hello, I am your assistant."}
		case CmdStatus:
			return ControlReply{OK: true, State: "idle", LLM: "connected"}
		default:
			return Fail(errors.New("unknown command: " + msg.Cmd))
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name string
		msg  ControlMessage
		want ControlReply
	}{
		{
			name: "say",
			msg:  ControlMessage{Cmd: CmdSay, Text: "hello"},
			want: ControlReply{OK: true, Transcript: "hello", Reply: "Hello, I am your assistant."},
		},
		{
			name: "status",
			msg:  ControlMessage{Cmd: CmdStatus},
			want: ControlReply{OK: true, State: "idle", LLM: "connected"},
		},
		{
			name: "unknown",
			msg:  ControlMessage{Cmd: "dance"},
			want: ControlReply{Error: "unknown command: dance"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SendCommand(ctx, path, tt.msg)
			if err != nil {
				t.Fatalf("SendCommand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("reply = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSendCommandNoDaemon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.sock")
	if _, err := SendCommand(context.Background(), path, ControlMessage{Cmd: CmdStatus}); err == nil {
		t.Error("expected an error with no daemon listening")
	}
}
