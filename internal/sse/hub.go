package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"roombook/internal/mq"
)

// Message is one frame on the activity stream.
type Message struct {
	Topic string   `json:"topic"`
	Event mq.Event `json:"event"`
}

// Hub fans activity out to every connected browser. A slow client drops
// frames rather than stalling the others.
type Hub struct {
	logger    *log.Logger
	keepAlive time.Duration

	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger:     logger,
		keepAlive:  15 * time.Second,
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 100),
		done:       make(chan struct{}),
		clients:    make(map[chan []byte]struct{}),
	}
}

// Run dispatches until ctx is done, then closes every client channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for ch := range h.clients {
				delete(h.clients, ch)
				close(ch)
			}
			h.mu.Unlock()
			return
		case ch := <-h.register:
			h.mu.Lock()
			h.clients[ch] = struct{}{}
			h.mu.Unlock()
		case ch := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for ch := range h.clients {
				select {
				case ch <- msg:
				default:
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues a raw payload. Non-JSON input is wrapped so the stream
// stays parseable. A full queue drops the frame.
func (h *Hub) Broadcast(b []byte) {
	if !json.Valid(b) {
		b, _ = json.Marshal(map[string]any{
			"topic":   "raw",
			"payload": string(b),
		})
	}
	select {
	case h.broadcast <- append([]byte(nil), b...):
	default:
		h.logger.Printf("sse queue full; dropping frame")
	}
}

// Publish lets the hub stand in for a broker when MQTT is off.
func (h *Hub) Publish(topic string, ev mq.Event) {
	b, err := json.Marshal(Message{Topic: topic, Event: ev})
	if err != nil {
		h.logger.Printf("marshal sse message: %v", err)
		return
	}
	h.Broadcast(b)
}

// Bridge adapts the hub to an MQTT subscription handler.
func (h *Hub) Bridge(topic string, payload []byte) {
	var ev mq.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		h.Broadcast(payload)
		return
	}
	h.Publish(topic, ev)
}

func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		client := make(chan []byte, 25)
		select {
		case h.register <- client:
		case <-h.done:
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		case <-r.Context().Done():
			return
		}
		defer func() {
			select {
			case h.unregister <- client:
			case <-h.done:
			}
		}()

		bw := bufio.NewWriter(w)
		writeFrame(bw, []byte(`{"topic":"connected"}`))
		_ = bw.Flush()
		flusher.Flush()

		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				_, _ = bw.WriteString(": keep-alive\n\n")
				_ = bw.Flush()
				flusher.Flush()
			case msg, ok := <-client:
				if !ok {
					return
				}
				writeFrame(bw, msg)
				_ = bw.Flush()
				flusher.Flush()
			}
		}
	}
}

func writeFrame(w *bufio.Writer, data []byte) {
	_, _ = fmt.Fprintf(w, "data: %s\n\n", bytes.ReplaceAll(data, []byte("\n"), []byte("")))
}
