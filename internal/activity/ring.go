package activity

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

type Record struct {
	ReceivedAt time.Time       `json:"received_at"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
}

// Ring keeps the newest max records, oldest first.
type Ring struct {
	mu  sync.Mutex
	max int
	arr []Record
	now func() time.Time
}

func NewRing(max int) *Ring {
	if max <= 0 {
		max = 50
	}
	return &Ring{max: max, arr: make([]Record, 0, max), now: time.Now}
}

func (rb *Ring) Add(e Record) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if len(rb.arr) < rb.max {
		rb.arr = append(rb.arr, e)
		return
	}
	copy(rb.arr, rb.arr[1:])
	rb.arr[len(rb.arr)-1] = e
}

// Record stores a message as received from the broker. Payloads that are
// not JSON are kept as a JSON string.
func (rb *Ring) Record(topic string, payload []byte) Record {
	raw := json.RawMessage(append([]byte(nil), payload...))
	if !json.Valid(raw) {
		raw, _ = json.Marshal(string(payload))
	}
	rec := Record{ReceivedAt: rb.now().UTC(), Topic: topic, Payload: raw}
	rb.Add(rec)
	return rec
}

func (rb *Ring) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.arr)
}

// Snapshot copies the records whose topic starts with prefix; "" matches all.
func (rb *Ring) Snapshot(prefix string) []Record {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]Record, 0, len(rb.arr))
	for _, r := range rb.arr {
		if strings.HasPrefix(r.Topic, prefix) {
			out = append(out, r)
		}
	}
	return out
}
