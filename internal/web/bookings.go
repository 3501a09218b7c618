package web

import (
	"net/http"

	"roombook/internal/api"
	"roombook/internal/views"
)

type bookingRow struct {
	api.Booking
	Customer string `json:"customer"`
	RoomName string `json:"room_name"`
}

func bookingRows(list []api.Booking) []bookingRow {
	out := make([]bookingRow, 0, len(list))
	for _, b := range list {
		out = append(out, bookingRow{Booking: b, Customer: b.Customer(), RoomName: b.RoomName()})
	}
	return out
}

func (s *Server) myBookings(w http.ResponseWriter, r *http.Request) {
	s.listBookings(w, r, s.mine)
}

func (s *Server) allBookings(w http.ResponseWriter, r *http.Request) {
	s.listBookings(w, r, s.all)
}

func (s *Server) listBookings(w http.ResponseWriter, r *http.Request, m *views.Bookings) {
	list, err := m.Load(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":    m.Scope().String(),
		"bookings": bookingRows(list),
	})
}

// deleteBooking cancels through the list the caller can see: every booking
// for admins, their own otherwise. The other held list drops it too.
func (s *Server) deleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	m, other := s.mine, s.all
	if s.session.Role().IsAdmin() {
		m, other = s.all, s.mine
	}
	if err := m.Delete(r.Context(), id, confirmFromQuery(r)); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	other.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}
