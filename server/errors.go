package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcpgate/bridge"
)

// attachStatus maps an Attach failure to an HTTP status code.
func attachStatus(err error) int {
	switch {
	case errors.Is(err, bridge.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusServiceUnavailable
}

func (s *Server) attachError(w http.ResponseWriter, err error) {
	status := attachStatus(err)
	s.logger.Warnw("session rejected", "status", status, "error", err)
	http.Error(w, err.Error(), status)
}

// parseErrorResponse builds the JSON-RPC reply for a malformed message.
func parseErrorResponse(err error) *jsonrpc.Response {
	return &jsonrpc.Response{
		Jsonrpc: jsonrpc.Version,
		Error:   jsonrpc.NewError(jsonrpc.ParseError, err.Error(), nil),
	}
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
