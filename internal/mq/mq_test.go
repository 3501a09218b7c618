package mq

import (
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	a := NewEvent("booking_created", 7, 11, map[string]string{"start": "2024-06-20"})
	b := NewEvent("booking_created", 7, 12, nil)

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("events need distinct ids: %q %q", a.ID, b.ID)
	}
	if a.At.Location().String() != "UTC" {
		t.Errorf("At should be UTC, got %v", a.At.Location())
	}

	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	if _, ok := m["detail"]; ok {
		t.Errorf("nil detail should be omitted: %s", raw)
	}
	if m["room_id"].(float64) != 7 {
		t.Errorf("room_id = %v", m["room_id"])
	}
}

func TestPublisherSkipsWithoutClient(t *testing.T) {
	// must not panic with no connection
	NewPublisher(nil, nil).Publish(TopicBookingCreated, NewEvent("x", 0, 0, nil))
	Nop{}.Publish(TopicBookingCreated, Event{})
}

func TestConnectRequiresBroker(t *testing.T) {
	if _, err := Connect(Config{}); err == nil {
		t.Fatalf("expected error for empty broker URL")
	}
}

func TestConnectDoesNotBlockOnDeadBroker(t *testing.T) {
	start := time.Now()
	c, err := Connect(Config{
		BrokerURL:   "tcp://127.0.0.1:1",
		Logger:      log.New(io.Discard, "", 0),
		ConnectWait: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect(0)

	if took := time.Since(start); took > 3*time.Second {
		t.Fatalf("Connect blocked for %s", took)
	}
	if c.IsConnected() {
		t.Fatalf("connected to a dead broker")
	}
	// publishing while the client retries is skipped, not blocked
	NewPublisher(c, log.New(io.Discard, "", 0)).Publish(TopicBookingCreated, NewEvent("x", 0, 0, nil))
}
