package netcore

import (
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// HandshakeState is the TLS overlay's state machine (spec §4.C).
type HandshakeState int32

const (
	HandshakeNotStarted HandshakeState = iota
	Handshaking
	Handshaked
)

// TLSSession extends a StreamSession with a handshake phase. No
// application read/write is armed until the handshake completes. Stale
// asynchronous handshake completions — those belonging to an attempt that
// has since been replaced (e.g. a fast reconnect) — are discarded via the
// attempt counter.
type TLSSession struct {
	*StreamSession

	config *tls.Config
	state  atomic.Int32
	attempt  atomic.Int64

	// OnHandshaked fires once the handshake completes successfully and the
	// session's read/write pipeline has been armed.
	OnHandshaked func()
}

// NewTLSSession wraps a fresh StreamSession with the given TLS config. The
// client vs. server role is selected by the caller via
// ConnectClient/ConnectServer below, not by inspecting the config itself.
func NewTLSSession(opts SocketOptions, config *tls.Config, log logging.LeveledLogger) *TLSSession {
	return &TLSSession{
		StreamSession: NewStreamSession(opts, namedLogger(log, "tls-session")),
		config:        config,
	}
}

func (t *TLSSession) State() HandshakeState {
	return HandshakeState(t.state.Load())
}

// ConnectServer installs a raw (already-accepted) net.Conn as the server
// side of a TLS handshake and starts that handshake asynchronously.
func (t *TLSSession) ConnectServer(raw net.Conn) {
	applySocketOptions(raw, t.opts, t.log)
	t.connect(tls.Server(raw, t.config))
}

// ConnectClient installs a raw (already-dialed) net.Conn as the client
// side of a TLS handshake and starts that handshake asynchronously.
func (t *TLSSession) ConnectClient(raw net.Conn) {
	applySocketOptions(raw, t.opts, t.log)
	t.connect(tls.Client(raw, t.config))
}

func (t *TLSSession) connect(tlsConn *tls.Conn) {
	myAttempt := t.attempt.Add(1)
	t.state.Store(int32(Handshaking))

	// armed=false: the underlying StreamSession must not start its receive
	// loop (and application code must not send) before the handshake
	// completes.
	t.StreamSession.Connect(tlsConn, false)

	go func() {
		err := tlsConn.HandshakeContext(context.Background())
		if t.attempt.Load() != myAttempt {
			// A newer handshake attempt has superseded this one (e.g. the
			// session was reconnected); discard this completion entirely.
			return
		}
		if err != nil {
			t.state.Store(int32(HandshakeNotStarted))
			t.Hooks.fireError(ErrHandshakeFailure, errors.Wrap(err, "netcore: tls handshake"))
			t.StreamSession.Disconnect()
			return
		}
		t.state.Store(int32(Handshaked))
		t.StreamSession.arm()
		if t.OnHandshaked != nil {
			t.OnHandshaked()
		}
	}()
}

// Shutdown performs a cooperative close: a TLS close-notify followed by
// the underlying socket shutdown. Safe to call multiple times.
func (t *TLSSession) Shutdown() {
	if tc, ok := t.StreamSession.conn.(*tls.Conn); ok {
		_ = tc.CloseWrite()
	}
	t.StreamSession.Disconnect()
}
