package netcore

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStreamServer(t *testing.T) (*StreamServer, net.Listener) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewStreamServer(DefaultSocketOptions(), 0, func() *StreamSession {
		return NewStreamSession(DefaultSocketOptions(), nil)
	}, nil)
	return server, l
}

// TestStreamServerAcceptLoopRegistersSessions exercises server.go's
// accept loop end to end: dialing the listener produces a registered
// session reachable via FindSession/SessionCount.
func TestStreamServerAcceptLoopRegistersSessions(t *testing.T) {
	server, l := newTestStreamServer(t)
	go server.Serve(l)
	defer server.Stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return server.SessionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// TestStreamServerBroadcastReachesAllSessions verifies Broadcast fans a
// payload out to every registered session without requiring the caller
// to enumerate them.
func TestStreamServerBroadcastReachesAllSessions(t *testing.T) {
	server, l := newTestStreamServer(t)
	go server.Serve(l)
	defer server.Stop()

	const peers = 3
	conns := make([]net.Conn, peers)
	for i := range conns {
		conn, err := net.Dial("tcp", l.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
		conns[i] = conn
	}

	require.Eventually(t, func() bool {
		return server.SessionCount() == peers
	}, 2*time.Second, 10*time.Millisecond)

	server.Broadcast([]byte("hi"))

	for _, conn := range conns {
		buf := make([]byte, 2)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, err := io.ReadFull(conn, buf)
		require.NoError(t, err)
		require.Equal(t, "hi", string(buf))
	}
}

// TestStreamServerStopDisconnectsSessionsAndClosesListener checks that
// Stop is idempotent, releases the listener, and tears down every
// registered session rather than just ending the accept loop.
func TestStreamServerStopDisconnectsSessionsAndClosesListener(t *testing.T) {
	server, l := newTestStreamServer(t)
	go server.Serve(l)

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return server.SessionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, server.Stop())
	require.NoError(t, server.Stop()) // idempotent

	buf := make([]byte, 1)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(buf)
	require.Error(t, err, "peer connection should be closed once the server stops")

	_, dialErr := net.Dial("tcp", l.Addr().String())
	require.Error(t, dialErr, "listener should be closed after Stop")
}
