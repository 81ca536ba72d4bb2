package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"labjack"
)

func TestGone(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("portB read: %w", labjack.ErrDeviceRemoved), true},
		{fmt.Errorf("ReadPortA(): %w", labjack.ErrNotFound), true},
		{fmt.Errorf("portC read: %w: %w", labjack.ErrInterrupted, context.Canceled), true},
		{fmt.Errorf("portB read: %w", labjack.ErrChecksum), false},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		if got := gone(tt.err); got != tt.want {
			t.Errorf("gone(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestPublisher_NoBroker(t *testing.T) {
	p, err := connect(labjack.MQTTConfig{TopicPrefix: "lab"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("connect err=%v", err)
	}
	if p.client != nil {
		t.Fatal("client created without a broker")
	}
	if got := p.topic("telemetry"); got != "lab/telemetry" {
		t.Fatalf("topic %q", got)
	}
	p.publish("status", true, statusMessage{State: "attached"})
	p.close()
}
