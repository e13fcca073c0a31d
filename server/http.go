package server

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// HTTP returns an http.Server serving sessions on addr (the configured
// address when empty).
func (s *Server) HTTP(_ context.Context, addr string) *http.Server {
	if addr == "" {
		addr = s.addr
	}
	return &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
}

// Handler returns the routed handler wrapped with the middleware chain.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET(s.sseURI, s.handleSSE)
	router.POST(s.messageURI, s.handleMessage)
	router.GET(s.webSocketURI, s.handleWebSocket)
	router.GET(HealthURI, s.handleHealth)
	router.HandleOPTIONS = true

	var middlewareHandlers []Middleware
	if s.corsConfig != nil {
		middlewareHandlers = append(middlewareHandlers, s.corsConfig.Middleware)
		middlewareHandlers = append(middlewareHandlers, originValidationMiddleware(s.corsConfig.AllowOrigins))
	}
	sessions := ChainMiddlewareHandlers(router, append(middlewareHandlers, s.authorizer)...)
	health := ChainMiddlewareHandlers(router, middlewareHandlers...)

	mux := http.NewServeMux()
	mux.Handle(HealthURI, health)
	mux.Handle("/", sessions)
	return mux
}
