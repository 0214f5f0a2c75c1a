package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const DefaultSocketPath = "/tmp/jarvis.sock"

const (
	CmdTrigger = "trigger"
	CmdSay     = "say"
	CmdFile    = "file"
	CmdStatus  = "status"
)

type ControlMessage struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
	Path string `json:"path,omitempty"`
}

type ControlReply struct {
	OK         bool   `json:"ok"`
	Transcript string `json:"transcript,omitempty"`
	Reply      string `json:"reply,omitempty"`
	State      string `json:"state,omitempty"`
	LLM        string `json:"llm,omitempty"`
	Error      string `json:"error,omitempty"`
}

func Fail(err error) ControlReply {
	return ControlReply{Error: err.Error()}
}

type Handler func(ctx context.Context, msg ControlMessage) ControlReply

// Server accepts one JSON request per connection and writes one JSON reply.
type Server struct {
	path string
	ln   net.Listener
	wg   sync.WaitGroup
}

func Listen(path string) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{path: path, ln: ln}, nil
}

func (s *Server) Path() string {
	return s.path
}

// Serve handles connections until ctx is done.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			log.Warn("Accept failed", "err", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handleConn(ctx, conn, h)
		}()
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

func handleConn(ctx context.Context, conn net.Conn, h Handler) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		json.NewEncoder(conn).Encode(ControlReply{Error: "malformed request"})
		return
	}

	log.Debug("Control message", "cmd", msg.Cmd)
	reply := h(ctx, msg)

	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Warn("Failed to write reply", "err", err)
	}
}

// SendCommand sends msg to the daemon listening on path and waits for its
// reply.
func SendCommand(ctx context.Context, path string, msg ControlMessage) (ControlReply, error) {
	if path == "" {
		path = DefaultSocketPath
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return ControlReply{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(2 * time.Minute))
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return ControlReply{}, fmt.Errorf("send: %w", err)
	}

	var reply ControlReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return ControlReply{}, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
