package web

import (
	"net/http"
	"strconv"

	"roombook/internal/api"
	"roombook/internal/availability"
	"roombook/internal/validation"
)

type selectionRequest struct {
	Bound string `json:"bound"`
	Date  string `json:"date"`
}

type selectionResponse struct {
	RoomID    int64                  `json:"room_id"`
	Selection availability.Selection `json:"selection"`
	State     string                 `json:"state"`
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	cards, failed, err := s.dash.Load(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	unavailable := make(map[string]string, len(failed))
	for id, ferr := range failed {
		unavailable[strconv.FormatInt(id, 10)] = ferr.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms":       cards,
		"unavailable": unavailable,
	})
}

func (s *Server) roomBusy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid room id")
		return
	}
	if err := s.avail.Refresh(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_id": id,
		"busy":    s.avail.BusyRanges(id),
	})
}

func (s *Server) setSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid room id")
		return
	}
	var req selectionRequest
	if err := jsonDecode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	v := validation.New()
	bound, err := availability.ParseBound(req.Bound)
	if err != nil {
		v.Add("bound", "must be start or end")
	}
	day, err := api.ParseDate(req.Date)
	if err != nil {
		v.Add("date", "must be a date like 2006-01-02")
	} else if !v.HasErrors() && !s.avail.Selectable(id, bound, day) {
		v.Add("date", "not selectable: past, busy or before check-in")
	}
	if err := v.Err(); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	sel := s.avail.SetSelectionBound(id, bound, day)
	writeJSON(w, http.StatusOK, selectionResponse{RoomID: id, Selection: sel, State: sel.State().String()})
}

func (s *Server) resetSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid room id")
		return
	}
	s.avail.Reset(id)
	writeJSON(w, http.StatusOK, selectionResponse{RoomID: id, State: availability.Empty.String()})
}

// book runs the picker checks first so obvious mistakes never reach the API.
func (s *Server) book(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid room id")
		return
	}
	if err := s.avail.Check(id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	b, err := s.avail.Submit(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var in api.RoomInput
	if err := jsonDecode(r, &in); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	room, err := s.dash.Rooms.Create(r.Context(), in)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) updateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid room id")
		return
	}
	var patch api.RoomPatch
	if err := jsonDecode(r, &patch); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	room, err := s.dash.Rooms.Update(r.Context(), id, patch)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid room id")
		return
	}
	if err := s.dash.DeleteRoom(r.Context(), id, confirmFromQuery(r)); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
