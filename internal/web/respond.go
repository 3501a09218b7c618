package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"roombook/internal/api"
	"roombook/internal/validation"
	"roombook/internal/views"
)

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps a view model error to a response. Client errors from the
// booking API keep their status; server errors become 502.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *validation.Error
	switch views.ErrorKind(err) {
	case "invalid_credentials":
		writeErr(w, http.StatusUnauthorized, "invalid username or password")
	case "validation":
		errors.As(err, &vErr)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": vErr.Fields,
		})
	case "declined":
		writeErr(w, http.StatusPreconditionRequired, "add confirm=true to delete")
	case "api":
		var se *api.StatusError
		errors.As(err, &se)
		msg := se.Message
		if msg == "" {
			msg = http.StatusText(se.StatusCode)
		}
		status := se.StatusCode
		if status >= 500 {
			status = http.StatusBadGateway
		}
		writeErr(w, status, msg)
	case "network":
		s.logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeErr(w, http.StatusBadGateway, "booking API unreachable")
	default:
		s.logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// confirmFromQuery approves a delete only when the request carries
// confirm=true.
func confirmFromQuery(r *http.Request) views.Confirm {
	return func(_ context.Context, _ string) (bool, error) {
		return r.URL.Query().Get("confirm") == "true", nil
	}
}
