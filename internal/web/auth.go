package web

import (
	"net/http"

	"roombook/internal/role"
	"roombook/internal/validation"
	"roombook/internal/views"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type meResponse struct {
	Authenticated bool             `json:"authenticated"`
	Username      string           `json:"username,omitempty"`
	Role          role.Role        `json:"role,omitempty"`
	Affordances   role.Affordances `json:"affordances"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := jsonDecode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	v := validation.New()
	if req.Username == "" {
		v.Add("username", "required")
	}
	if req.Password == "" {
		v.Add("password", "required")
	}
	if err := v.Err(); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if err := s.session.Login(r.Context(), req.Username, req.Password); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.currentUser())
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		s.logger.Printf("logout: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := jsonDecode(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := views.Register(r.Context(), s.api, req.Username, req.Password); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request) {
	u := s.currentUser()
	if !u.Authenticated {
		writeJSON(w, http.StatusUnauthorized, u)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) currentUser() meResponse {
	cred, ok := s.session.Credential()
	if !ok {
		return meResponse{}
	}
	rl := s.session.Role()
	out := meResponse{Authenticated: true, Role: rl, Affordances: rl.Affordances()}
	if c, err := role.Decode(cred); err == nil {
		out.Username = c.Username
	}
	return out
}
