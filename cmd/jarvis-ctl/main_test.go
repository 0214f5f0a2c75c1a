package main

import (
	"testing"

	"jarvis/internal/ipc"
)

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		args    []string
		want    ipc.ControlMessage
		wantErr bool
	}{
		{args: nil, want: ipc.ControlMessage{Cmd: "trigger"}},
		{args: []string{"status"}, want: ipc.ControlMessage{Cmd: "status"}},
		{args: []string{"say", "what", "time", "is", "it"}, want: ipc.ControlMessage{Cmd: "say", Text: "what time is it"}},
		{args: []string{"file", "/tmp/clip.wav"}, want: ipc.ControlMessage{Cmd: "file", Path: "/tmp/clip.wav"}},
		{args: []string{"say"}, wantErr: true},
		{args: []string{"dance"}, wantErr: true},
	}

	for _, tt := range tests {
		got, err := buildMessage(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("buildMessage(%q) error = %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("buildMessage(%q) = %+v, want %+v", tt.args, got, tt.want)
		}
	}
}
