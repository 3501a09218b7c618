package activity

import (
	"strconv"
	"testing"
)

func TestRingKeepsNewest(t *testing.T) {
	rb := NewRing(3)
	for i := 1; i <= 5; i++ {
		rb.Record("roombook/bookings/created", []byte(`{"n":`+strconv.Itoa(i)+`}`))
	}
	if rb.Len() != 3 {
		t.Fatalf("Len = %d, want 3", rb.Len())
	}
	got := rb.Snapshot("")
	if string(got[0].Payload) != `{"n":3}` || string(got[2].Payload) != `{"n":5}` {
		t.Fatalf("snapshot = %s .. %s", got[0].Payload, got[2].Payload)
	}
}

func TestRingFilterAndRawPayload(t *testing.T) {
	rb := NewRing(0)
	rb.Record("roombook/rooms/changed", []byte(`{}`))
	rec := rb.Record("roombook/users/deleted", []byte("plain text"))

	if string(rec.Payload) != `"plain text"` {
		t.Fatalf("payload = %s", rec.Payload)
	}
	if got := rb.Snapshot("roombook/rooms"); len(got) != 1 || got[0].Topic != "roombook/rooms/changed" {
		t.Fatalf("filtered = %+v", got)
	}

	snap := rb.Snapshot("")
	snap[0].Topic = "mutated"
	if rb.Snapshot("")[0].Topic == "mutated" {
		t.Fatalf("snapshot shares storage with the ring")
	}
}
