package netcore

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// SessionFactory builds the per-connection session a StreamServer hands
// each accepted socket to. Implementations wire up Hooks before returning
// (see http_server.go / ws_server.go).
type SessionFactory func() *StreamSession

// StreamServer binds, listens, and accepts connections (spec §4.D),
// registering each into a concurrent session map and fanning broadcasts
// out to all of them. It is transport-agnostic: tcp_server.go and
// uds_server.go both build one around a net.Listener. ssl_server.go does
// not use it: it runs its own accept loop and registers each TLS session
// before that session's handshake completes.
type StreamServer struct {
	log     logging.LeveledLogger
	opts    SocketOptions
	backlog int

	newSession SessionFactory

	listener net.Listener
	listenMu sync.Mutex

	sessions sync.Map // id string -> *StreamSession

	bytesSent     int64
	bytesReceived int64
	bytesPending  int64

	// AcceptLimiter, when non-nil, throttles the accept loop — an ambient
	// resource-control knob (golang.org/x/time/rate) guarding against
	// accept storms; not present in the original spec but consistent with
	// the fine-grained socket tuning already in scope (spec §6).
	AcceptLimiter *rate.Limiter

	stopped atomic.Bool
	wg      sync.WaitGroup

	random randutil.MathRandomGenerator
}

// NewStreamServer constructs a server around the given session factory.
// Serve (or the transport-specific Start helpers) must be called
// afterward.
func NewStreamServer(opts SocketOptions, backlog int, newSession SessionFactory, log logging.LeveledLogger) *StreamServer {
	if backlog <= 0 {
		backlog = 128
	}
	return &StreamServer{
		log:        namedLogger(log, "server"),
		opts:       opts,
		backlog:    backlog,
		newSession: newSession,
		random:     randutil.NewMathRandomGenerator(),
	}
}

// Serve takes ownership of an already-bound listener and runs the accept
// loop until Stop is called or the listener errors out permanently.
func (s *StreamServer) Serve(l net.Listener) {
	s.listenMu.Lock()
	s.listener = l
	s.listenMu.Unlock()

	backoff := 5 * time.Millisecond
	const maxBackoff = 1 * time.Second

	for !s.stopped.Load() {
		if s.AcceptLimiter != nil {
			_ = s.AcceptLimiter.Wait(context.Background())
		}
		conn, err := l.Accept()
		if err != nil {
			if s.stopped.Load() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() { //nolint:staticcheck
				jitter := time.Duration(s.random.Intn(int(backoff / time.Millisecond))) * time.Millisecond
				time.Sleep(backoff + jitter)
				if backoff *= 2; backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			s.log.Errorf("netcore: accept failed, stopping server: %v", err)
			return
		}
		backoff = 5 * time.Millisecond
		s.acceptOne(conn)
	}
}

func (s *StreamServer) acceptOne(conn net.Conn) {
	session := s.newSession()
	session.setOwner(s)
	s.sessions.Store(session.ID, session)
	s.wg.Add(1)

	origDisconnected := session.Hooks.OnDisconnected
	session.Hooks.OnDisconnected = func() {
		s.wg.Done()
		if origDisconnected != nil {
			origDisconnected()
		}
	}

	session.Connect(conn, true)
}

// Broadcast schedules a non-blocking send of data on every registered
// session. It does not guarantee atomicity across sessions: a session
// that disconnects mid-iteration is simply skipped.
func (s *StreamServer) Broadcast(data []byte) {
	s.sessions.Range(func(_, v interface{}) bool {
		sess := v.(*StreamSession)
		_, _ = sess.SendAsync(data)
		return true
	})
}

// Addr returns the bound listener's address, or nil before Serve/Start
// has run. Useful for discovering the actual port after listening on
// ":0".
func (s *StreamServer) Addr() net.Addr {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionCount returns the number of currently registered sessions.
func (s *StreamServer) SessionCount() int {
	n := 0
	s.sessions.Range(func(_, _ interface{}) bool { n++; return true })
	return n
}

// FindSession looks a session up by ID.
func (s *StreamServer) FindSession(id string) (*StreamSession, bool) {
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*StreamSession), true
}

func (s *StreamServer) unregisterSession(id string) { s.sessions.Delete(id) }
func (s *StreamServer) addBytesSent(n int64)         { atomic.AddInt64(&s.bytesSent, n) }
func (s *StreamServer) addBytesReceived(n int64)     { atomic.AddInt64(&s.bytesReceived, n) }
func (s *StreamServer) addBytesPending(delta int64)  { atomic.AddInt64(&s.bytesPending, delta) }

func (s *StreamServer) BytesSent() int64     { return atomic.LoadInt64(&s.bytesSent) }
func (s *StreamServer) BytesReceived() int64 { return atomic.LoadInt64(&s.bytesReceived) }
func (s *StreamServer) BytesPending() int64  { return atomic.LoadInt64(&s.bytesPending) }

// Stop halts acceptance, disconnects every registered session, and
// idempotently releases the listener socket.
func (s *StreamServer) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	s.listenMu.Lock()
	l := s.listener
	s.listenMu.Unlock()

	var closeErr error
	if l != nil {
		closeErr = l.Close()
	}

	s.sessions.Range(func(_, v interface{}) bool {
		v.(*StreamSession).Disconnect()
		return true
	})
	s.wg.Wait()

	if closeErr != nil {
		return errors.Wrap(closeErr, "netcore: closing listener")
	}
	return nil
}
