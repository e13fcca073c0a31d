package server

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Option is a function that configures the server.
type Option func(s *Server) error

// WithCORS sets the CORS policy; the allowed origins also drive Origin validation.
func WithCORS(cors *Cors) Option {
	return func(s *Server) error {
		s.corsConfig = cors
		return nil
	}
}

// WithAuthorizer adds an authorizer in front of every session endpoint.
func WithAuthorizer(authorizer Middleware) Option {
	return func(s *Server) error {
		s.authorizer = authorizer
		return nil
	}
}

// WithBearerKey requires HS256 bearer tokens signed with key.
func WithBearerKey(key []byte) Option {
	return func(s *Server) error {
		if len(key) == 0 {
			return fmt.Errorf("bearer key was empty")
		}
		return WithAuthorizer(BearerAuthorizer(key))(s)
	}
}

// WithStatus sets the health status provider.
func WithStatus(status StatusProvider) Option {
	return func(s *Server) error {
		s.status = status
		return nil
	}
}

// WithAddr sets the default listen address.
func WithAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithSSEURI sets the SSE stream path.
func WithSSEURI(URI string) Option {
	return func(s *Server) error {
		return setURI(&s.sseURI, URI)
	}
}

// WithMessageURI sets the path receiving posted messages.
func WithMessageURI(URI string) Option {
	return func(s *Server) error {
		return setURI(&s.messageURI, URI)
	}
}

// WithWebSocketURI sets the WebSocket path.
func WithWebSocketURI(URI string) Option {
	return func(s *Server) error {
		return setURI(&s.webSocketURI, URI)
	}
}

// WithPingInterval sets how often SSE keep-alive comments are sent.
func WithPingInterval(interval time.Duration) Option {
	return func(s *Server) error {
		if interval <= 0 {
			return fmt.Errorf("invalid ping interval: %v", interval)
		}
		s.pingInterval = interval
		return nil
	}
}

// WithMaxMessageSize limits the size of a posted or received message.
func WithMaxMessageSize(size int64) Option {
	return func(s *Server) error {
		if size > 0 {
			s.maxMessageSize = size
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Server) error {
		s.logger = logger.Named("server")
		return nil
	}
}

func setURI(target *string, URI string) error {
	if URI == "" {
		return nil
	}
	if !strings.HasPrefix(URI, "/") {
		return fmt.Errorf("URI must start with '/': %v", URI)
	}
	*target = URI
	return nil
}
