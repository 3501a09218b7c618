package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roombook/internal/mq"
)

func readData(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubStreamsEvents(t *testing.T) {
	h := NewHub(log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	if got := readData(t, r); got != `{"topic":"connected"}` {
		t.Fatalf("first frame = %s", got)
	}
	waitClients(t, h, 1)

	h.Publish(mq.TopicBookingCreated, mq.NewEvent("booking.created", 7, 42, nil))

	var msg Message
	if err := json.Unmarshal([]byte(readData(t, r)), &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if msg.Topic != mq.TopicBookingCreated || msg.Event.RoomID != 7 || msg.Event.EntityID != 42 {
		t.Fatalf("frame = %+v", msg)
	}

	h.Bridge("roombook/raw", []byte("not json"))
	if got := readData(t, r); !strings.Contains(got, `"not json"`) {
		t.Fatalf("raw frame = %s", got)
	}

	cancel()
	if _, err := io.ReadAll(r); err != nil {
		t.Fatalf("stream did not end cleanly: %v", err)
	}
}
