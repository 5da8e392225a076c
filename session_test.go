package netcore

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStreamSessionSendAsyncDeliversBytes(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	session := NewStreamSession(DefaultSocketOptions(), nil)
	session.Connect(serverConn, true)
	defer session.Disconnect()

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 5)
		n, _ := io.ReadFull(clientConn, buf)
		readDone <- buf[:n]
	}()

	ok, err := session.SendAsync([]byte("hello"))
	require.True(t, ok)
	require.NoError(t, err)

	select {
	case data := <-readDone:
		require.Equal(t, []byte("hello"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for peer read")
	}
}

func TestStreamSessionReceiveLoopFiresOnReceived(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	session := NewStreamSession(DefaultSocketOptions(), nil)
	received := make(chan []byte, 1)
	session.Hooks.OnReceived = func(data []byte) {
		received <- append([]byte(nil), data...)
	}
	session.Connect(serverConn, true)
	defer session.Disconnect()

	go func() { _, _ = clientConn.Write([]byte("ping")) }()

	select {
	case data := <-received:
		require.Equal(t, []byte("ping"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for receive")
	}
}

func TestStreamSessionByteCountersSettleAfterSend(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	session := NewStreamSession(DefaultSocketOptions(), nil)

	var emptyFires int32
	sentDone := make(chan struct{})
	session.Hooks.OnEmptySendBuffer = func() {
		// OnEmptySendBuffer fires once immediately on Connect (nothing
		// queued yet) and again once our payload below fully drains.
		if atomic.AddInt32(&emptyFires, 1) == 2 {
			close(sentDone)
		}
	}
	session.Connect(serverConn, true)
	defer session.Disconnect()

	go func() {
		buf := make([]byte, 4)
		_, _ = io.ReadFull(clientConn, buf)
	}()

	_, err := session.SendAsync([]byte("data"))
	require.NoError(t, err)

	select {
	case <-sentDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for empty send buffer")
	}

	require.Equal(t, int64(0), session.BytesPending())
	require.Equal(t, int64(0), session.BytesSending())
	require.Equal(t, int64(4), session.BytesSent())
}

func TestStreamSessionSendAsyncRejectsOverLimit(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	opts := DefaultSocketOptions()
	opts.SendBufferLimit = 2

	session := NewStreamSession(opts, nil)
	var gotErr error
	session.Hooks.OnError = func(kind ErrorKind, err error) { gotErr = err }
	session.Connect(serverConn, true)
	defer session.Disconnect()

	ok, err := session.SendAsync([]byte("abcd"))
	require.False(t, ok)
	require.ErrorIs(t, err, ErrNoBufferSpace)
	require.ErrorIs(t, gotErr, ErrNoBufferSpace)
}

func TestStreamSessionSendAsyncOnUnconnectedSessionFails(t *testing.T) {
	session := NewStreamSession(DefaultSocketOptions(), nil)
	ok, err := session.SendAsync([]byte("x"))
	require.False(t, ok)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestStreamSessionDisconnectIsIdempotent(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	session := NewStreamSession(DefaultSocketOptions(), nil)
	var disconnected int32
	session.Hooks.OnDisconnected = func() { atomic.AddInt32(&disconnected, 1) }
	session.Connect(serverConn, true)

	session.Disconnect()
	session.Disconnect()

	require.Equal(t, int32(1), atomic.LoadInt32(&disconnected))
	require.False(t, session.IsConnected())
}

func TestStreamSessionPeerCloseTriggersSilentDisconnect(t *testing.T) {
	serverConn, clientConn := net.Pipe()

	session := NewStreamSession(DefaultSocketOptions(), nil)
	var gotError bool
	disconnected := make(chan struct{})
	session.Hooks.OnError = func(ErrorKind, error) { gotError = true }
	session.Hooks.OnDisconnected = func() { close(disconnected) }
	session.Connect(serverConn, true)

	clientConn.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}
	require.False(t, gotError, "peer-gone errors must not surface through OnError")
}
