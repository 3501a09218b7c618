package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"roombook/internal/apitest"
	"roombook/internal/config"
	"roombook/internal/storage"
)

type harness struct {
	api   *apitest.Server
	state storage.Storage
}

func newHarness(t *testing.T) *harness {
	return &harness{api: apitest.New(t), state: storage.NewMemory()}
}

// exec runs one command with stdin as given and returns the exit code and
// both output streams.
func (h *harness) exec(stdin string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, env{
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
		Config: config.CLIConfig{API: config.APIConfig{BaseURL: h.api.URL}, RefreshConcurrency: 2},
		State:  h.state,
		Now:    func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	return code, stdout.String(), stderr.String()
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	code, out, errOut := h.exec("", args...)
	if code != 0 {
		t.Fatalf("roombook %s = %d\nstdout: %s\nstderr: %s", strings.Join(args, " "), code, out, errOut)
	}
	return out
}

func TestSessionGate(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.exec("", "rooms")
	if code != 1 || !strings.Contains(errOut, "not logged in") {
		t.Fatalf("rooms without login = %d %q", code, errOut)
	}
	if len(h.api.Calls()) != 0 {
		t.Fatalf("gated command reached the API")
	}
	if out := h.mustRun(t, "whoami"); !strings.Contains(out, "not logged in") {
		t.Fatalf("whoami = %q", out)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("ann", "pw", "USER")

	code, _, errOut := h.exec("wrong\n", "login", "-u", "ann")
	if code != 1 || !strings.Contains(errOut, "invalid username or password") {
		t.Fatalf("bad login = %d %q", code, errOut)
	}

	if code, _, errOut := h.exec("pw\n", "login", "-u", "ann"); code != 0 {
		t.Fatalf("login with prompted password = %d %q", code, errOut)
	}

	var me whoami
	if err := json.Unmarshal([]byte(h.mustRun(t, "-o", "json", "whoami")), &me); err != nil {
		t.Fatalf("decode whoami: %v", err)
	}
	if me.Username != "ann" || me.Role != "USER" || me.Affordances.ManageUsers {
		t.Fatalf("whoami = %+v", me)
	}

	h.mustRun(t, "logout")
	if code, _, _ := h.exec("", "my"); code != 1 {
		t.Fatalf("my after logout = %d", code)
	}
}

func TestBookAndCancel(t *testing.T) {
	h := newHarness(t)
	ann := h.api.AddUser("ann", "pw", "USER")
	room := h.api.AddRoom("Garden", 80)
	bid := h.api.AddBooking(room.ID, ann.ID, "2024-06-10", "2024-06-15")
	id := strconv.FormatInt(room.ID, 10)
	h.mustRun(t, "login", "-u", "ann", "-p", "pw")

	out := h.mustRun(t, "rooms")
	if !strings.Contains(out, "Garden") || !strings.Contains(out, "2024-06-10..2024-06-15") {
		t.Fatalf("rooms = %q", out)
	}

	code, _, errOut := h.exec("", "book", id, "2024-06-14", "2024-06-16")
	if code != 1 || !strings.Contains(errOut, "overlap") {
		t.Fatalf("overlapping book = %d %q", code, errOut)
	}
	if h.api.CallsTo(http.MethodPost, "/bookings") != 0 {
		t.Fatalf("rejected selection was submitted")
	}

	if code, _, errOut := h.exec("", "book", id, "2024-05-20", "2024-05-22"); code != 1 || !strings.Contains(errOut, "past") {
		t.Fatalf("past book = %d %q", code, errOut)
	}

	out = h.mustRun(t, "book", id, "2024-06-20", "2024-06-22")
	if !strings.Contains(out, "booked room "+id+" from 2024-06-20 to 2024-06-22") {
		t.Fatalf("book = %q", out)
	}
	if h.api.BookingCount() != 2 {
		t.Fatalf("bookings = %d", h.api.BookingCount())
	}

	out = h.mustRun(t, "my")
	if strings.Count(out, "Garden") != 2 || !strings.Contains(out, "ann") {
		t.Fatalf("my = %q", out)
	}

	code, _, errOut = h.exec("n\n", "cancel", strconv.FormatInt(bid, 10))
	if code != 1 || !strings.Contains(errOut, "cancelled") {
		t.Fatalf("declined cancel = %d %q", code, errOut)
	}
	if h.api.BookingCount() != 2 {
		t.Fatalf("declined cancel deleted a booking")
	}
	h.mustRun(t, "-y", "cancel", strconv.FormatInt(bid, 10))
	if h.api.BookingCount() != 1 {
		t.Fatalf("confirmed cancel left %d bookings", h.api.BookingCount())
	}
}

func TestAdminCommands(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("root", "pw", "ADMIN")
	h.api.AddUser("ann", "pw", "USER")
	room := h.api.AddRoom("Garden", 80)
	id := strconv.FormatInt(room.ID, 10)

	h.mustRun(t, "login", "-u", "ann", "-p", "pw")
	if code, _, errOut := h.exec("", "users"); code != 1 || !strings.Contains(errOut, "admin only") {
		t.Fatalf("users as USER = %d %q", code, errOut)
	}

	h.mustRun(t, "login", "-u", "root", "-p", "pw")

	out := h.mustRun(t, "-o", "yaml", "room-edit", id, "-price", "95")
	if !strings.Contains(out, "price: 95") || !strings.Contains(out, "name: Garden") {
		t.Fatalf("room-edit = %q", out)
	}

	if code, _, errOut := h.exec("", "room-add", "-name", "Attic"); code != 1 || !strings.Contains(errOut, "price") {
		t.Fatalf("room-add without price = %d %q", code, errOut)
	}

	if code, _, errOut := h.exec("", "deluser", "1"); code != 1 || !strings.Contains(errOut, "admin") {
		t.Fatalf("deleting an admin = %d %q", code, errOut)
	}

	if code, _, _ := h.exec("y\n", "room-del", id); code != 0 || h.api.RoomCount() != 0 {
		t.Fatalf("confirmed room-del = %d, rooms left %d", code, h.api.RoomCount())
	}
	h.mustRun(t, "-y", "deluser", "2")
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{},
		{"-o", "xml", "rooms"},
		{"frobnicate"},
	} {
		if code, _, _ := h.exec("", args...); code != 2 {
			t.Errorf("roombook %v = %d, want 2", args, code)
		}
	}

	h.api.AddUser("ann", "pw", "USER")
	h.mustRun(t, "login", "-u", "ann", "-p", "pw")
	if code, _, _ := h.exec("", "book", "1"); code != 2 {
		t.Errorf("book with missing args = %d", code)
	}
	if code, _, _ := h.exec("", "busy", "abc"); code != 2 {
		t.Errorf("busy with bad id = %d", code)
	}
}
