// Package apitest runs an in-memory stand-in for the external booking API so
// front-end components can be tested against real HTTP round trips.
package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"roombook/internal/api"
)

var secret = []byte("apitest-signing-key")

// Call is one request the server received.
type Call struct {
	Method        string
	Path          string
	Authorization string
}

type account struct {
	user     api.User
	passHash []byte
}

func hashPassword(pw string) []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	return h
}

type booking struct {
	id     int64
	roomID int64
	userID int64
	start  string
	end    string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts []account
	rooms    []api.Room
	bookings []booking
	nextID   int64
	calls    []Call
	failures map[string]int
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{nextID: 1, failures: map[string]int{}}

	r := chi.NewRouter()
	r.Use(s.record)

	r.Post("/auth/login", s.login)
	r.Post("/users", s.register)
	r.Get("/users", s.admin(s.listUsers))
	r.Delete("/users/{id}", s.admin(s.deleteUser))

	r.Get("/rooms", s.authed(s.listRooms))
	r.Post("/rooms", s.admin(s.createRoom))
	r.Patch("/rooms/{id}", s.admin(s.updateRoom))
	r.Delete("/rooms/{id}", s.admin(s.deleteRoom))

	r.Get("/bookings", s.admin(s.listBookings))
	r.Get("/bookings/my", s.authed(s.listMyBookings))
	r.Get("/bookings/room/{id}", s.authed(s.listRoomBookings))
	r.Post("/bookings", s.authed(s.createBooking))
	r.Delete("/bookings/{id}", s.authed(s.deleteBooking))

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) AddUser(username, password, role string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := api.User{ID: s.id(), Username: username, Role: role}
	s.accounts = append(s.accounts, account{user: u, passHash: hashPassword(password)})
	return u
}

func (s *Server) AddRoom(name string, price float64) api.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := api.Room{ID: s.id(), Name: name, Description: name + " room", Price: price, Status: "AVAILABLE"}
	s.rooms = append(s.rooms, room)
	return room
}

// AddRoomWithID is for scenarios that need a fixed room id.
func (s *Server) AddRoomWithID(id int64, name string, price float64) api.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := api.Room{ID: id, Name: name, Description: name + " room", Price: price, Status: "AVAILABLE"}
	s.rooms = append(s.rooms, room)
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return room
}

// AddBooking stores a booking; dates are YYYY-MM-DD.
func (s *Server) AddBooking(roomID, userID int64, start, end string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := booking{id: s.id(), roomID: roomID, userID: userID, start: start + "T00:00:00.000Z", end: end + "T00:00:00.000Z"}
	s.bookings = append(s.bookings, b)
	return b.id
}

// Token issues a signed access token for username, as login would.
func (s *Server) Token(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Username == username {
			return issue(a.user)
		}
	}
	return ""
}

// Fail makes every following request to method+path answer status.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	s.failures[method+" "+path] = status
	s.mu.Unlock()
}

func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	delete(s.failures, method+" "+path)
	s.mu.Unlock()
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo counts requests to method+path.
func (s *Server) CallsTo(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *Server) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *Server) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func issue(u api.User) string {
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"role":     u.Role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	return tok
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Authorization: r.Header.Get("Authorization")})
		status, fail := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if fail {
			writeErr(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type caller struct {
	id   int64
	role string
}

func (s *Server) caller(r *http.Request) (caller, error) {
	h := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return caller{}, errors.New("missing bearer")
	}
	mc := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(raw, mc, func(*jwt.Token) (any, error) { return secret, nil }); err != nil {
		return caller{}, err
	}
	sub, _ := mc["sub"].(float64)
	role, _ := mc["role"].(string)
	return caller{id: int64(sub), role: role}, nil
}

func (s *Server) authed(h func(http.ResponseWriter, *http.Request, caller)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.caller(r)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h(w, r, c)
	}
}

func (s *Server) admin(h func(http.ResponseWriter, *http.Request, caller)) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, c caller) {
		if c.role != "ADMIN" {
			writeErr(w, http.StatusForbidden, "Forbidden resource")
			return
		}
		h(w, r, c)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Username == req.Username && bcrypt.CompareHashAndPassword(a.passHash, []byte(req.Password)) == nil {
			writeJSON(w, http.StatusCreated, api.LoginResponse{AccessToken: issue(a.user)})
			return
		}
	}
	writeErr(w, http.StatusUnauthorized, "Unauthorized")
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, "username and password required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.user.Username == req.Username {
			writeErr(w, http.StatusConflict, "username taken")
			return
		}
	}
	u := api.User{ID: s.id(), Username: req.Username, Role: "USER"}
	s.accounts = append(s.accounts, account{user: u, passHash: hashPassword(req.Password)})
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request, _ caller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.user)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, _ caller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.accounts {
		if a.user.ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
			return
		}
	}
	writeErr(w, http.StatusNotFound, "user not found")
}

func (s *Server) listRooms(w http.ResponseWriter, _ *http.Request, _ caller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, append([]api.Room{}, s.rooms...))
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request, _ caller) {
	var in api.RoomInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room := api.Room{ID: s.id(), Name: in.Name, Description: in.Description, Price: in.Price, Status: "AVAILABLE"}
	s.rooms = append(s.rooms, room)
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) updateRoom(w http.ResponseWriter, r *http.Request, _ caller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p api.RoomPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rooms {
		if s.rooms[i].ID != id {
			continue
		}
		if p.Name != nil {
			s.rooms[i].Name = *p.Name
		}
		if p.Description != nil {
			s.rooms[i].Description = *p.Description
		}
		if p.Price != nil {
			s.rooms[i].Price = *p.Price
		}
		if p.Status != nil {
			s.rooms[i].Status = *p.Status
		}
		writeJSON(w, http.StatusOK, s.rooms[i])
		return
	}
	writeErr(w, http.StatusNotFound, "room not found")
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request, _ caller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, room := range s.rooms {
		if room.ID == id {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
			return
		}
	}
	writeErr(w, http.StatusNotFound, "room not found")
}

func (s *Server) listBookings(w http.ResponseWriter, _ *http.Request, _ caller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.render(func(booking) bool { return true }))
}

func (s *Server) listMyBookings(w http.ResponseWriter, _ *http.Request, c caller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.render(func(b booking) bool { return b.userID == c.id }))
}

func (s *Server) listRoomBookings(w http.ResponseWriter, r *http.Request, _ caller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.BookingRange{}
	for _, b := range s.bookings {
		if b.roomID == id {
			out = append(out, api.BookingRange{StartDate: b.start, EndDate: b.end})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request, c caller) {
	var req api.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	start, err1 := api.ParseDate(req.StartDate)
	end, err2 := api.ParseDate(req.EndDate)
	if err1 != nil || err2 != nil || end.Before(start) {
		writeErr(w, http.StatusBadRequest, "invalid dates")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.roomID != req.RoomID {
			continue
		}
		bs, _ := api.ParseDate(b.start)
		be, _ := api.ParseDate(b.end)
		if !start.After(be) && !end.Before(bs) {
			writeErr(w, http.StatusConflict, "Room is already booked for these dates")
			return
		}
	}
	b := booking{id: s.id(), roomID: req.RoomID, userID: c.id, start: req.StartDate, end: req.EndDate}
	s.bookings = append(s.bookings, b)
	writeJSON(w, http.StatusCreated, s.renderOne(b))
}

func (s *Server) deleteBooking(w http.ResponseWriter, r *http.Request, c caller) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.bookings {
		if b.id != id {
			continue
		}
		if b.userID != c.id && c.role != "ADMIN" {
			writeErr(w, http.StatusForbidden, "not your booking")
			return
		}
		s.bookings = append(s.bookings[:i], s.bookings[i+1:]...)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}
	writeErr(w, http.StatusNotFound, "booking not found")
}

func (s *Server) render(keep func(booking) bool) []api.Booking {
	out := []api.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, s.renderOne(b))
		}
	}
	return out
}

func (s *Server) renderOne(b booking) api.Booking {
	out := api.Booking{ID: b.id, StartDate: b.start, EndDate: b.end}
	for _, room := range s.rooms {
		if room.ID == b.roomID {
			room := room
			out.Room = &room
		}
	}
	for _, a := range s.accounts {
		if a.user.ID == b.userID {
			u := a.user
			out.User = &u
		}
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"statusCode": status, "message": msg})
}
