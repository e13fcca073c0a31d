package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/viant/mcpgate/bridge"
)

const sessionIDParam = "session_id"

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	session, err := s.attach(r.Context())
	if err != nil {
		s.attachError(w, err)
		return
	}
	s.register(session)
	defer s.release(session)
	s.logger.Infow("sse session opened", "session", session.ID, "remote", r.RemoteAddr)

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	endpoint := s.messageURI + "?" + sessionIDParam + "=" + url.QueryEscape(session.ID)
	if writeEvent(w, "endpoint", []byte(endpoint)) != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data := <-session.Messages():
			if err = writeEvent(w, "message", data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err = io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case <-session.Done():
			for {
				select {
				case data := <-session.Messages():
					if err = writeEvent(w, "message", data); err != nil {
						return
					}
				default:
					flusher.Flush()
					s.logger.Infow("sse session ended", "session", session.ID, "reason", session.Err())
					return
				}
			}
		case <-r.Context().Done():
			s.logger.Infow("sse client disconnected", "session", session.ID)
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w io.Writer, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id := r.URL.Query().Get(sessionIDParam)
	if id == "" {
		http.Error(w, "missing "+sessionIDParam, http.StatusBadRequest)
		return
	}
	entry, ok := s.sessions.Get(id)
	if !ok {
		http.Error(w, "unknown session: "+id, http.StatusNotFound)
		return
	}
	if entry.closed() {
		http.Error(w, "session closed: "+id, http.StatusGone)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxMessageSize))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}
	err = entry.session.Submit(r.Context(), body)
	var malformed *bridge.MalformedMessageError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "Accepted")
	case errors.As(err, &malformed):
		writeJSON(w, http.StatusBadRequest, parseErrorResponse(err))
	case errors.Is(err, bridge.ErrSessionClosed), errors.Is(err, bridge.ErrSessionStalled), errors.Is(err, bridge.ErrProcessExited):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		s.logger.Errorw("failed to submit message", "session", id, "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	}
}
