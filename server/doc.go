// Package server exposes bridge sessions over streaming HTTP.
//
// Each GET on the SSE URI attaches a new session and announces the message
// endpoint in an "endpoint" event; frames from the tool server follow as
// "message" events. Callers POST JSON-RPC messages to the message URI with
// the session_id query parameter. A WebSocket endpoint carries the same
// frames as text messages in both directions.
//
//	srv, _ := server.New(service, server.WithCORS(cors))
//	log.Fatal(srv.HTTP(ctx, "127.0.0.1:3333").ListenAndServe())
//
// Optional middleware covers HS256 bearer tokens, CORS and Origin validation.
package server
