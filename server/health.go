package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := &Status{State: StateReady}
	if s.status != nil {
		status = s.status.Status()
	}
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
