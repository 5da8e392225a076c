package netcore

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pkg/errors"
)

// TLSSessionFactory builds the per-connection TLS overlay a SSLServer
// hands each accepted socket to.
type TLSSessionFactory func() *TLSSession

// SSLServer is the TLS-secured variant of TCPServer: the accept loop is
// identical, but each socket is wrapped in a TLSSession and registered
// into the session map immediately (so Stop/Broadcast can reach it even
// mid-handshake). OnConnected fires at accept time, before the handshake;
// the receive loop (and so OnReceived) and the delivery of queued sends
// only start once the handshake completes.
type SSLServer struct {
	log     logging.LeveledLogger
	opts    SocketOptions
	addr    string
	backlog int
	config  *tls.Config

	newSession TLSSessionFactory

	listener net.Listener
	sessions sync.Map // id string -> *TLSSession

	bytesSent, bytesReceived, bytesPending int64

	stopped atomic.Bool
	random  randutil.MathRandomGenerator
}

func NewSSLServer(addr string, opts SocketOptions, backlog int, config *tls.Config, newSession TLSSessionFactory, log logging.LeveledLogger) *SSLServer {
	if backlog <= 0 {
		backlog = 128
	}
	s := &SSLServer{
		log:        namedLogger(log, "ssl-server"),
		opts:       opts,
		addr:       addr,
		backlog:    backlog,
		config:     config,
		newSession: newSession,
		random:     randutil.NewMathRandomGenerator(),
	}
	return s
}

func (s *SSLServer) Start() error {
	lc := net.ListenConfig{Control: listenerControl(s.opts)}
	l, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return errors.Wrap(err, "netcore: ssl server listen")
	}
	s.listener = l
	go s.serve()
	return nil
}

func (s *SSLServer) serve() {
	backoff := 5 * time.Millisecond
	const maxBackoff = 1 * time.Second
	for !s.stopped.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopped.Load() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() { //nolint:staticcheck
				time.Sleep(backoff + time.Duration(s.random.Intn(5))*time.Millisecond)
				if backoff *= 2; backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			s.log.Errorf("netcore: ssl accept failed, stopping server: %v", err)
			return
		}
		backoff = 5 * time.Millisecond
		s.acceptOne(conn)
	}
}

func (s *SSLServer) acceptOne(conn net.Conn) {
	sess := s.newSession()
	sess.setOwner(s)
	s.sessions.Store(sess.ID, sess)

	origDisconnected := sess.Hooks.OnDisconnected
	sess.Hooks.OnDisconnected = func() {
		if origDisconnected != nil {
			origDisconnected()
		}
	}

	sess.ConnectServer(conn)
}

func (s *SSLServer) unregisterSession(id string) { s.sessions.Delete(id) }
func (s *SSLServer) addBytesSent(n int64)        { atomic.AddInt64(&s.bytesSent, n) }
func (s *SSLServer) addBytesReceived(n int64)    { atomic.AddInt64(&s.bytesReceived, n) }
func (s *SSLServer) addBytesPending(delta int64) { atomic.AddInt64(&s.bytesPending, delta) }

// Broadcast schedules a non-blocking send on every registered (even if
// still handshaking) session; SendAsync on a not-yet-armed session simply
// queues the bytes for delivery once the handshake completes.
func (s *SSLServer) Broadcast(data []byte) {
	s.sessions.Range(func(_, v interface{}) bool {
		_, _ = v.(*TLSSession).SendAsync(data)
		return true
	})
}

func (s *SSLServer) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
	}
	s.sessions.Range(func(_, v interface{}) bool {
		v.(*TLSSession).Shutdown()
		return true
	})
	if closeErr != nil {
		return errors.Wrap(closeErr, "netcore: closing ssl listener")
	}
	return nil
}
