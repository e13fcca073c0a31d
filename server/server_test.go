package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcpgate/bridge"
	"github.com/viant/mcpgate/process"
	"github.com/viant/mcpgate/process/processtest"
	"nhooyr.io/websocket"
)

func TestHelperProcess(t *testing.T) {
	processtest.Serve()
}

type bridgeProvider struct {
	bridge *bridge.Bridge
	err    error
}

func (p *bridgeProvider) Attach(ctx context.Context) (*bridge.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.bridge.Attach()
}

type staticStatus struct {
	status *Status
}

func (s *staticStatus) Status() *Status {
	return s.status
}

func newEchoProvider(t *testing.T, policy bridge.Policy) *bridgeProvider {
	supervisor := process.NewSupervisor(
		process.WithLauncher(&processtest.Launcher{Mode: "echo"}),
		process.WithStartWindow(100*time.Millisecond),
		process.WithGracePeriod(time.Second),
	)
	proc, err := supervisor.Start(context.Background(), "mcpgate-test", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = proc.Terminate(context.Background())
	})
	aBridge, err := bridge.New(proc, bridge.WithPolicy(policy))
	require.NoError(t, err)
	return &bridgeProvider{bridge: aBridge}
}

func newTestServer(t *testing.T, provider SessionProvider, options ...Option) *httptest.Server {
	srv, err := New(provider, options...)
	require.NoError(t, err)
	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)
	return httpServer
}

type event struct {
	name string
	data string
}

type sseStream struct {
	reader *bufio.Reader
	body   io.Closer
	cancel context.CancelFunc
}

func openSSE(t *testing.T, URL string) (*sseStream, *http.Response) {
	ctx, cancel := context.WithCancel(context.Background())
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, URL+DefaultSSEURI, nil)
	require.NoError(t, err)
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	stream := &sseStream{reader: bufio.NewReader(response.Body), body: response.Body, cancel: cancel}
	t.Cleanup(stream.close)
	return stream, response
}

func (s *sseStream) close() {
	s.cancel()
	_ = s.body.Close()
}

// next returns the next event, skipping comments.
func (s *sseStream) next() (*event, error) {
	ret := &event{}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ret.name != "" || ret.data != "" {
				return ret, nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			ret.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ret.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func post(t *testing.T, URL, body string) *http.Response {
	response, err := http.Post(URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func TestServer_SSERoundTrip(t *testing.T) {
	httpServer := newTestServer(t, newEchoProvider(t, bridge.Exclusive))
	stream, response := openSSE(t, httpServer.URL)
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "text/event-stream", response.Header.Get("Content-Type"))

	endpoint, err := stream.next()
	require.NoError(t, err)
	assert.Equal(t, "endpoint", endpoint.name)
	assert.True(t, strings.HasPrefix(endpoint.data, DefaultMessageURI+"?session_id="), endpoint.data)

	reply := post(t, httpServer.URL+endpoint.data, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusAccepted, reply.StatusCode)

	message, err := stream.next()
	require.NoError(t, err)
	assert.Equal(t, "message", message.name)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, message.data)
}

func TestServer_PostErrors(t *testing.T) {
	httpServer := newTestServer(t, newEchoProvider(t, bridge.Exclusive))
	stream, _ := openSSE(t, httpServer.URL)
	endpoint, err := stream.next()
	require.NoError(t, err)

	t.Run("malformed", func(t *testing.T) {
		reply := post(t, httpServer.URL+endpoint.data, `{"jsonrpc":"2.0","id":`)
		assert.Equal(t, http.StatusBadRequest, reply.StatusCode)
		response := &jsonrpc.Response{}
		require.NoError(t, json.NewDecoder(reply.Body).Decode(response))
		require.NotNil(t, response.Error)
		assert.Equal(t, jsonrpc.ParseError, response.Error.Code)
	})
	t.Run("missing session id", func(t *testing.T) {
		reply := post(t, httpServer.URL+DefaultMessageURI, `{"id":1}`)
		assert.Equal(t, http.StatusBadRequest, reply.StatusCode)
	})
	t.Run("unknown session", func(t *testing.T) {
		reply := post(t, httpServer.URL+DefaultMessageURI+"?session_id=unknown", `{"id":1}`)
		assert.Equal(t, http.StatusNotFound, reply.StatusCode)
	})
	t.Run("session survives malformed message", func(t *testing.T) {
		reply := post(t, httpServer.URL+endpoint.data, `{"id":7}`)
		assert.Equal(t, http.StatusAccepted, reply.StatusCode)
		message, err := stream.next()
		require.NoError(t, err)
		assert.Equal(t, `{"id":7}`, message.data)
	})
	t.Run("closed session", func(t *testing.T) {
		stream.close()
		assert.Eventually(t, func() bool {
			response, err := http.Post(httpServer.URL+endpoint.data, "application/json", strings.NewReader(`{"id":8}`))
			if err != nil {
				return false
			}
			_ = response.Body.Close()
			return response.StatusCode == http.StatusGone
		}, 5*time.Second, 20*time.Millisecond)
	})
}

func TestServer_PostBodyErrors(t *testing.T) {
	httpServer := newTestServer(t, newEchoProvider(t, bridge.Exclusive), WithMaxMessageSize(32))
	stream, _ := openSSE(t, httpServer.URL)
	endpoint, err := stream.next()
	require.NoError(t, err)

	t.Run("oversized body", func(t *testing.T) {
		reply := post(t, httpServer.URL+endpoint.data, `{"id":1,"params":"`+strings.Repeat("x", 64)+`"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, reply.StatusCode)
	})
	t.Run("truncated body", func(t *testing.T) {
		conn, err := net.Dial("tcp", strings.TrimPrefix(httpServer.URL, "http://"))
		require.NoError(t, err)
		defer conn.Close()
		_, err = io.WriteString(conn, "POST "+endpoint.data+" HTTP/1.1\r\nHost: localhost\r\n"+
			"Content-Type: application/json\r\nContent-Length: 30\r\n\r\n{\"id\":1}")
		require.NoError(t, err)
		require.NoError(t, conn.(*net.TCPConn).CloseWrite())
		response, err := http.ReadResponse(bufio.NewReader(conn), nil)
		require.NoError(t, err)
		defer response.Body.Close()
		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	})
	t.Run("session still usable", func(t *testing.T) {
		reply := post(t, httpServer.URL+endpoint.data, `{"id":2}`)
		assert.Equal(t, http.StatusAccepted, reply.StatusCode)
		message, err := stream.next()
		require.NoError(t, err)
		assert.Equal(t, `{"id":2}`, message.data)
	})
}

func TestServer_CustomAuthorizer(t *testing.T) {
	authorizer := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Gateway-Key") != "open-sesame" {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	httpServer := newTestServer(t, &bridgeProvider{err: bridge.ErrProcessExited}, WithAuthorizer(authorizer))

	response, err := http.Get(httpServer.URL + DefaultSSEURI)
	require.NoError(t, err)
	_ = response.Body.Close()
	assert.Equal(t, http.StatusForbidden, response.StatusCode)

	request, err := http.NewRequest(http.MethodGet, httpServer.URL+DefaultSSEURI, nil)
	require.NoError(t, err)
	request.Header.Set("X-Gateway-Key", "open-sesame")
	response, err = http.DefaultClient.Do(request)
	require.NoError(t, err)
	_ = response.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, response.StatusCode)

	response, err = http.Get(httpServer.URL + HealthURI)
	require.NoError(t, err)
	_ = response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
}

func TestServer_AttachFailures(t *testing.T) {
	var testCases = []struct {
		description string
		err         error
		expect      int
	}{
		{description: "busy", err: bridge.ErrSessionBusy, expect: http.StatusConflict},
		{description: "exited", err: bridge.ErrProcessExited, expect: http.StatusServiceUnavailable},
		{description: "provisioning failed", err: errors.New("build: failed to build image"), expect: http.StatusServiceUnavailable},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			httpServer := newTestServer(t, &bridgeProvider{err: testCase.err})
			response, err := http.Get(httpServer.URL + DefaultSSEURI)
			require.NoError(t, err)
			defer response.Body.Close()
			assert.Equal(t, testCase.expect, response.StatusCode)
			body, _ := io.ReadAll(response.Body)
			assert.Contains(t, string(body), testCase.err.Error())
		})
	}
}

func TestServer_ExclusiveSecondConnection(t *testing.T) {
	httpServer := newTestServer(t, newEchoProvider(t, bridge.Exclusive))
	stream, _ := openSSE(t, httpServer.URL)
	_, err := stream.next()
	require.NoError(t, err)

	response, err := http.Get(httpServer.URL + DefaultSSEURI)
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusConflict, response.StatusCode)
}

func TestServer_ProcessExitEndsStream(t *testing.T) {
	httpServer := newTestServer(t, newEchoProvider(t, bridge.Exclusive))
	stream, _ := openSSE(t, httpServer.URL)
	endpoint, err := stream.next()
	require.NoError(t, err)

	reply := post(t, httpServer.URL+endpoint.data, `{"exit":4}`)
	assert.Equal(t, http.StatusAccepted, reply.StatusCode)

	notification, err := stream.next()
	require.NoError(t, err)
	assert.Equal(t, "message", notification.name)
	assert.Contains(t, notification.data, `"method":"notifications/message"`)
	assert.Contains(t, notification.data, `"exitCode":4`)

	_, err = stream.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestServer_Health(t *testing.T) {
	var testCases = []struct {
		description string
		status      *Status
		expect      int
	}{
		{description: "ready", status: &Status{State: StateReady, Sessions: 1}, expect: http.StatusOK},
		{description: "provisioning", status: &Status{State: StateProvisioning}, expect: http.StatusOK},
		{description: "failed", status: &Status{State: StateFailed, Reason: "clone: repository not found"}, expect: http.StatusServiceUnavailable},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			httpServer := newTestServer(t, &bridgeProvider{}, WithStatus(&staticStatus{status: testCase.status}))
			response, err := http.Get(httpServer.URL + HealthURI)
			require.NoError(t, err)
			defer response.Body.Close()
			assert.Equal(t, testCase.expect, response.StatusCode)
			actual := &Status{}
			require.NoError(t, json.NewDecoder(response.Body).Decode(actual))
			assert.Equal(t, testCase.status, actual)
		})
	}
}

func TestServer_BearerAuthorizer(t *testing.T) {
	key := []byte("test-signing-key")
	httpServer := newTestServer(t, &bridgeProvider{err: bridge.ErrProcessExited}, WithBearerKey(key))
	sign := func(method jwt.SigningMethod, key interface{}) string {
		token, err := jwt.NewWithClaims(method, jwt.MapClaims{"sub": "tester", "exp": time.Now().Add(time.Hour).Unix()}).SignedString(key)
		require.NoError(t, err)
		return token
	}
	var testCases = []struct {
		description string
		header      string
		query       string
		expect      int
	}{
		{description: "missing token", expect: http.StatusUnauthorized},
		{description: "wrong key", header: "Bearer " + sign(jwt.SigningMethodHS256, []byte("other")), expect: http.StatusUnauthorized},
		{description: "wrong algorithm", header: "Bearer " + sign(jwt.SigningMethodHS512, key), expect: http.StatusUnauthorized},
		{description: "malformed header", header: "Token abc", expect: http.StatusUnauthorized},
		{description: "valid header", header: "Bearer " + sign(jwt.SigningMethodHS256, key), expect: http.StatusServiceUnavailable},
		{description: "valid query", query: "?access_token=" + sign(jwt.SigningMethodHS256, key), expect: http.StatusServiceUnavailable},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			request, err := http.NewRequest(http.MethodGet, httpServer.URL+DefaultSSEURI+testCase.query, nil)
			require.NoError(t, err)
			if testCase.header != "" {
				request.Header.Set("Authorization", testCase.header)
			}
			response, err := http.DefaultClient.Do(request)
			require.NoError(t, err)
			defer response.Body.Close()
			assert.Equal(t, testCase.expect, response.StatusCode)
		})
	}

	response, err := http.Get(httpServer.URL + HealthURI)
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)
}

func TestServer_CORS(t *testing.T) {
	cors := &Cors{AllowOrigins: []string{"https://app.example.com"}, AllowMethods: []string{"GET", "POST"}, AllowHeaders: []string{"*"}}
	httpServer := newTestServer(t, &bridgeProvider{err: bridge.ErrProcessExited}, WithCORS(cors))

	request, err := http.NewRequest(http.MethodOptions, httpServer.URL+DefaultMessageURI, nil)
	require.NoError(t, err)
	request.Header.Set("Origin", "https://app.example.com")
	request.Header.Set(AllControlRequestHeader, http.MethodPost)
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusNoContent, response.StatusCode)
	assert.Equal(t, "https://app.example.com", response.Header.Get(AllowOriginHeader))
	assert.Equal(t, "GET, POST", response.Header.Get(AllowMethodsHeader))

	request, err = http.NewRequest(http.MethodGet, httpServer.URL+DefaultSSEURI, nil)
	require.NoError(t, err)
	request.Header.Set("Origin", "https://evil.example.com")
	response, err = http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
	assert.Empty(t, response.Header.Get(AllowOriginHeader))
}

func TestServer_WebSocket(t *testing.T) {
	httpServer := newTestServer(t, newEchoProvider(t, bridge.Broadcast))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	URL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + DefaultWebSocketURI
	conn, _, err := websocket.Dial(ctx, URL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, string(data))

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`not json`)))
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	response := &jsonrpc.Response{}
	require.NoError(t, json.Unmarshal(data, response))
	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpc.ParseError, response.Error.Code)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"id":2}`)))
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"id":2}`, string(data))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&bridgeProvider{}, WithSSEURI("sse"))
	assert.Error(t, err)
	_, err = New(&bridgeProvider{}, WithBearerKey(nil))
	assert.Error(t, err)
	_, err = New(&bridgeProvider{}, WithPingInterval(0))
	assert.Error(t, err)
}
