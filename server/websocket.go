package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/viant/mcpgate/bridge"
	"nhooyr.io/websocket"
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	session, err := s.attach(r.Context())
	if err != nil {
		s.attachError(w, err)
		return
	}
	s.register(session)
	defer s.release(session)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Debugf("error accepting WebSocket conn: %s", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(s.maxMessageSize)
	s.logger.Infow("websocket session opened", "session", session.ID, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.forward(ctx, cancel, conn, session)

	for {
		messageType, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Debugw("websocket read stopped", "session", session.ID, "error", err)
			}
			return
		}
		if messageType != websocket.MessageText {
			_ = conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}
		err = session.Submit(ctx, data)
		var malformed *bridge.MalformedMessageError
		switch {
		case err == nil:
		case errors.As(err, &malformed):
			reply, _ := json.Marshal(parseErrorResponse(err))
			if err = conn.Write(ctx, websocket.MessageText, reply); err != nil {
				return
			}
		default:
			_ = conn.Close(websocket.StatusGoingAway, err.Error())
			return
		}
	}
}

// forward writes session frames to conn until the session ends.
func (s *Server) forward(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, session *bridge.Session) {
	defer cancel()
	for {
		data, err := session.Next(ctx)
		if err != nil {
			if errors.Is(err, bridge.ErrProcessExited) {
				_ = conn.Close(websocket.StatusGoingAway, err.Error())
			}
			return
		}
		if err = conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}
}
