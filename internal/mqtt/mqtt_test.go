package mqtt

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"weathervision/internal/config"
	"weathervision/internal/modules/weather/types"
)

func newTestSubscriber(t *testing.T) (*Subscriber, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := config.Config{
		MQTTBroker:   "127.0.0.1",
		MQTTPort:     1,
		MQTTClientID: "test",
		MQTTTopic:    "weathervision/records",
	}
	s, err := NewSubscriber(cfg, logger)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	return s, &buf
}

func TestHandleMessage_DecodesRecord(t *testing.T) {
	s, _ := newTestSubscriber(t)
	var got types.RecordInput
	calls := 0
	s.SetMessageHandler(func(ctx context.Context, in types.RecordInput) error {
		calls++
		got = in
		if _, ok := ctx.Deadline(); !ok {
			t.Error("handler context has no deadline")
		}
		return nil
	})

	s.handleMessage("weathervision/records", []byte(`{"city":"Oslo","temperature":-2.5,"humidity":85,"pressure":1001,"description":"snow","wind_speed":6,"wind_direction":310}`))

	if calls != 1 {
		t.Fatalf("handler calls = %d; want 1", calls)
	}
	if got.City == nil || *got.City != "Oslo" || got.Temperature == nil || *got.Temperature != -2.5 {
		t.Errorf("decoded = %+v", got)
	}
	if got.WindDirection == nil || *got.WindDirection != 310 {
		t.Errorf("WindDirection = %v; want 310", got.WindDirection)
	}
}

func TestHandleMessage_InvalidJSON(t *testing.T) {
	s, logs := newTestSubscriber(t)
	calls := 0
	s.SetMessageHandler(func(context.Context, types.RecordInput) error {
		calls++
		return nil
	})

	s.handleMessage("weathervision/records", []byte(`not json`))

	if calls != 0 {
		t.Errorf("handler calls = %d; want 0", calls)
	}
	if !strings.Contains(logs.String(), "failed to parse record message") {
		t.Errorf("logs = %q; want parse warning", logs.String())
	}
}

func TestHandleMessage_HandlerError(t *testing.T) {
	s, logs := newTestSubscriber(t)
	s.SetMessageHandler(func(context.Context, types.RecordInput) error {
		return errors.New("invalid record: city is required")
	})

	s.handleMessage("weathervision/records", []byte(`{}`))

	if !strings.Contains(logs.String(), "record message dropped") {
		t.Errorf("logs = %q; want drop warning", logs.String())
	}
}

func TestHandleMessage_NoHandler(t *testing.T) {
	s, _ := newTestSubscriber(t)

	// Must not panic.
	s.handleMessage("weathervision/records", []byte(`{"city":"Oslo"}`))
}

func TestDisconnect_Idempotent(t *testing.T) {
	s, _ := newTestSubscriber(t)

	if s.IsConnected() {
		t.Fatal("IsConnected() = true before Connect")
	}
	s.Disconnect()
	s.Disconnect()

	if err := s.Connect(context.Background()); err == nil {
		t.Error("Connect after Disconnect = nil; want error")
	}
}
