package server

import (
	"context"
	"errors"
	"time"

	"github.com/viant/mcp-protocol/syncmap"
	"github.com/viant/mcpgate/bridge"
	"go.uber.org/zap"
)

const (
	DefaultSSEURI       = "/sse"
	DefaultMessageURI   = "/messages/"
	DefaultWebSocketURI = "/ws"
	HealthURI           = "/healthz"
	DefaultAddr         = "127.0.0.1:3333"

	defaultPingInterval   = 15 * time.Second
	defaultMaxMessageSize = 4 * 1024 * 1024
	// closedSessionTTL is how long a closed session id answers 410 instead of 404.
	closedSessionTTL = 5 * time.Minute
)

// SessionProvider attaches bridge sessions for incoming connections.
type SessionProvider interface {
	Attach(ctx context.Context) (*bridge.Session, error)
}

// Status describes gateway health.
type Status struct {
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	Image    string `json:"image,omitempty"`
	Sessions int    `json:"sessions"`
}

// Healthy reports whether the gateway can serve or is about to.
func (s *Status) Healthy() bool {
	return s.State != StateFailed && s.State != StateExited
}

// Gateway states reported by Status.
const (
	StatePending      = "pending"
	StateProvisioning = "provisioning"
	StateReady        = "ready"
	StateFailed       = "failed"
	StateExited       = "exited"
)

// StatusProvider reports gateway health.
type StatusProvider interface {
	Status() *Status
}

// Server serves bridge sessions over SSE and WebSocket.
type Server struct {
	provider SessionProvider
	status   StatusProvider
	sessions *syncmap.Map[string, *sessionEntry]
	logger   *zap.SugaredLogger

	addr           string
	sseURI         string
	messageURI     string
	webSocketURI   string
	pingInterval   time.Duration
	maxMessageSize int64

	corsConfig *Cors
	authorizer Middleware
}

type sessionEntry struct {
	session  *bridge.Session
	closedAt time.Time
}

func (e *sessionEntry) closed() bool {
	if !e.closedAt.IsZero() {
		return true
	}
	select {
	case <-e.session.Done():
		return true
	default:
		return false
	}
}

func (s *Server) register(session *bridge.Session) {
	s.sweep()
	s.sessions.Put(session.ID, &sessionEntry{session: session})
}

func (s *Server) release(session *bridge.Session) {
	_ = session.Close()
	s.sessions.Put(session.ID, &sessionEntry{session: session, closedAt: time.Now()})
}

// sweep forgets sessions closed longer than closedSessionTTL.
func (s *Server) sweep() {
	cutoff := time.Now().Add(-closedSessionTTL)
	var expired []string
	s.sessions.Range(func(id string, entry *sessionEntry) bool {
		if !entry.closedAt.IsZero() && entry.closedAt.Before(cutoff) {
			expired = append(expired, id)
		}
		return true
	})
	for _, id := range expired {
		s.sessions.Delete(id)
	}
}

func (s *Server) attach(ctx context.Context) (*bridge.Session, error) {
	if s.provider == nil {
		return nil, errors.New("no session provider")
	}
	return s.provider.Attach(ctx)
}

// New creates a Server attaching sessions through provider.
func New(provider SessionProvider, options ...Option) (*Server, error) {
	s := &Server{
		provider:       provider,
		sessions:       syncmap.NewMap[string, *sessionEntry](),
		logger:         zap.NewNop().Sugar(),
		addr:           DefaultAddr,
		sseURI:         DefaultSSEURI,
		messageURI:     DefaultMessageURI,
		webSocketURI:   DefaultWebSocketURI,
		pingInterval:   defaultPingInterval,
		maxMessageSize: defaultMaxMessageSize,
		corsConfig:     DefaultCors(),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	if provider == nil {
		return nil, errors.New("no session provider specified")
	}
	return s, nil
}
