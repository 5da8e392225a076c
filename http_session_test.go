package netcore

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHTTPSessionMalformedRequestDisconnects exercises spec §7 rule 4:
// a protocol-malformed message surfaces via OnReceivedError and then
// disconnects the session, instead of leaving a half-parsed connection
// open indefinitely.
func TestHTTPSessionMalformedRequestDisconnects(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	session := NewStreamSession(DefaultSocketOptions(), nil)
	http := NewHTTPSession(session, false, nil)

	var gotErr error
	disconnected := make(chan struct{})
	http.Hooks.OnReceivedError = func(err error) { gotErr = err }
	session.Hooks.OnDisconnected = func() { close(disconnected) }

	session.Connect(serverConn, true)

	go func() { _, _ = clientConn.Write([]byte("GET / HTTP/1.1\r\n: novalue\r\n\r\n")) }()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect after malformed request")
	}
	require.Error(t, gotErr)
	require.False(t, session.IsConnected())
}

// TestHTTPServerWiresReceivedErrorToSessionError verifies http_server.go
// forwards a malformed-request failure through the StreamSession's
// OnError hook (not just HTTPHooks.OnReceivedError) so a server that
// only watches session-level errors still observes it.
func TestHTTPServerWiresReceivedErrorToSessionError(t *testing.T) {
	server := NewHTTPServer("127.0.0.1:0", DefaultSocketOptions(), 0, nil)
	require.NoError(t, server.Start())
	defer server.Stop()

	var gotKind ErrorKind
	disconnected := make(chan struct{})
	orig := server.newSession
	server.TCPServer.StreamServer.newSession = func() *StreamSession {
		session := orig()
		session.Hooks.OnError = func(kind ErrorKind, _ error) { gotKind = kind }
		prev := session.Hooks.OnDisconnected
		session.Hooks.OnDisconnected = func() {
			close(disconnected)
			if prev != nil {
				prev()
			}
		}
		return session
	}

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\n: novalue\r\n\r\n"))
	require.NoError(t, err)

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side disconnect")
	}
	require.Equal(t, ErrProtocolMalformed, gotKind)
}

// TestHTTPClientServerRoundTripServesCachedContent drives a real
// HTTPClient against a real HTTPServer over loopback TCP end to end: a
// GET for a cached path is answered straight from ContentCache without
// touching Handler.
func TestHTTPClientServerRoundTripServesCachedContent(t *testing.T) {
	cache := contentCacheMap{"/hello": []byte("hello world")}
	server := NewHTTPServer("127.0.0.1:0", DefaultSocketOptions(), 0, nil)
	server.Cache = cache
	require.NoError(t, server.Start())
	defer server.Stop()

	client := NewHTTPClient(server.Addr().String(), DefaultSocketOptions(), nil)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Send(ctx, NewGETRequest("/hello"))
	require.NoError(t, err)
	require.Equal(t, 200, resp.Status())
	require.Equal(t, "hello world", string(resp.Body()))
}

// TestHTTPClientServerRoundTripFallsBackTo404 exercises the no-cache,
// no-handler path.
func TestHTTPClientServerRoundTripFallsBackTo404(t *testing.T) {
	server := NewHTTPServer("127.0.0.1:0", DefaultSocketOptions(), 0, nil)
	require.NoError(t, server.Start())
	defer server.Stop()

	client := NewHTTPClient(server.Addr().String(), DefaultSocketOptions(), nil)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Send(ctx, NewGETRequest("/missing"))
	require.NoError(t, err)
	require.Equal(t, 404, resp.Status())
}

// TestHTTPClientSendFailsWhenRequestAlreadyInFlight checks the
// one-request-at-a-time invariant (spec §4.F: HTTP/1.1 without
// pipelining).
func TestHTTPClientSendFailsWhenRequestAlreadyInFlight(t *testing.T) {
	server := NewHTTPServer("127.0.0.1:0", DefaultSocketOptions(), 0, nil)
	server.Handler = func(session *HTTPSession, req *HTTPRequest) {
		if req.URL() == "/slow" {
			time.Sleep(200 * time.Millisecond)
		}
		_, _ = session.SendResponse(NewOKResponse())
	}
	require.NoError(t, server.Start())
	defer server.Stop()

	client := NewHTTPClient(server.Addr().String(), DefaultSocketOptions(), nil)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	var inFlightErr int32
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() {
		_, _ = client.Send(ctx, NewGETRequest("/slow"))
	}()

	// Give the first Send a head start so it has registered itself as
	// pending before the second one checks.
	time.Sleep(20 * time.Millisecond)
	_, err := client.Send(ctx, NewGETRequest("/other"))
	if err == ErrRequestInFlight {
		atomic.AddInt32(&inFlightErr, 1)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&inFlightErr))
}

type contentCacheMap map[string][]byte

func (c contentCacheMap) Find(path string) ([]byte, bool) {
	b, ok := c[path]
	return b, ok
}
