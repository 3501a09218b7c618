// Package web exposes the view models as JSON endpoints for a browser page.
// The gateway serves one user: the session is the one persisted credential.
package web

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"roombook/internal/api"
	"roombook/internal/availability"
	"roombook/internal/mq"
	"roombook/internal/session"
	"roombook/internal/views"
)

type Deps struct {
	Logger       *log.Logger
	Session      *session.Store
	API          *api.Client
	Availability *availability.Engine
	Events       mq.Publisher
	Stream       http.Handler // optional SSE endpoint
}

type Server struct {
	logger  *log.Logger
	session *session.Store
	api     *api.Client
	avail   *availability.Engine
	dash    *views.Dashboard
	mine    *views.Bookings
	all     *views.Bookings
	users   *views.Users
	stream  http.Handler
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	events := d.Events
	if events == nil {
		events = mq.Nop{}
	}
	opts := []views.Option{views.WithLogger(logger), views.WithPublisher(events)}
	return &Server{
		logger:  logger,
		session: d.Session,
		api:     d.API,
		avail:   d.Availability,
		dash: &views.Dashboard{
			Rooms:        views.NewRooms(d.API, opts...),
			Availability: d.Availability,
		},
		mine:   views.NewBookings(d.API, views.Mine, opts...),
		all:    views.NewBookings(d.API, views.All, opts...),
		users:  views.NewUsers(d.API, opts...),
		stream: d.Stream,
	}
}

// Routes mounts every endpoint under /api.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/login", s.login)
	r.Post("/auth/logout", s.logout)
	r.Post("/register", s.register)
	r.Get("/me", s.me)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/rooms", s.listRooms)
		r.Get("/rooms/{id}/busy", s.roomBusy)
		r.Put("/rooms/{id}/selection", s.setSelection)
		r.Delete("/rooms/{id}/selection", s.resetSelection)
		r.Post("/rooms/{id}/book", s.book)

		r.Get("/bookings/my", s.myBookings)
		r.Delete("/bookings/{id}", s.deleteBooking)

		if s.stream != nil {
			r.Get("/stream", s.stream.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Post("/rooms", s.createRoom)
			r.Patch("/rooms/{id}", s.updateRoom)
			r.Delete("/rooms/{id}", s.deleteRoom)
			r.Get("/bookings", s.allBookings)
			r.Get("/users", s.listUsers)
			r.Delete("/users/{id}", s.deleteUser)
		})
	})
	return r
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.session.IsAuthenticated() {
			writeErr(w, http.StatusUnauthorized, "not logged in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin hides admin controls from other roles. The booking API still
// enforces the rule on its side.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.session.Role().IsAdmin() {
			writeErr(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
