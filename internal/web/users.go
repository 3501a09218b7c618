package web

import (
	"net/http"

	"roombook/internal/api"
	"roombook/internal/views"
)

type userRow struct {
	api.User
	CanDelete bool `json:"can_delete"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.users.Load(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	out := make([]userRow, 0, len(list))
	for _, u := range list {
		out = append(out, userRow{User: u, CanDelete: views.CanDelete(u)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := s.users.Delete(r.Context(), id, confirmFromQuery(r)); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
