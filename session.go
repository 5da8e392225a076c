package netcore

import (
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nuid"
	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// Hooks are the lifecycle callbacks a StreamSession invokes. All hooks run
// synchronously on the goroutine that observed the event; receive-path
// hooks (OnReceived) may run concurrently with send-path hooks (OnSent,
// OnEmptySendBuffer) on a different goroutine, but never concurrently with
// themselves on the same session (spec §5).
type Hooks struct {
	OnConnecting      func()
	OnConnected       func()
	OnReceived        func(data []byte)
	OnSent            func(n int, pending int)
	OnEmptySendBuffer func()
	OnDisconnecting   func()
	OnDisconnected    func()
	OnError           func(kind ErrorKind, err error)
}

func (h *Hooks) fireConnecting() {
	if h.OnConnecting != nil {
		h.OnConnecting()
	}
}
func (h *Hooks) fireConnected() {
	if h.OnConnected != nil {
		h.OnConnected()
	}
}
func (h *Hooks) fireReceived(data []byte) {
	if h.OnReceived != nil {
		h.OnReceived(data)
	}
}
func (h *Hooks) fireSent(n, pending int) {
	if h.OnSent != nil {
		h.OnSent(n, pending)
	}
}
func (h *Hooks) fireEmptySendBuffer() {
	if h.OnEmptySendBuffer != nil {
		h.OnEmptySendBuffer()
	}
}
func (h *Hooks) fireDisconnecting() {
	if h.OnDisconnecting != nil {
		h.OnDisconnecting()
	}
}
func (h *Hooks) fireDisconnected() {
	if h.OnDisconnected != nil {
		h.OnDisconnected()
	}
}
func (h *Hooks) fireError(kind ErrorKind, err error) {
	if h.OnError != nil {
		h.OnError(kind, err)
	}
}

// sessionOwner is the non-owning back-reference a session holds to its
// server (spec §9 "cyclic ownership"): the server owns the session
// strongly via its concurrent map, the session only calls back to
// unregister itself and to report aggregate counters.
type sessionOwner interface {
	unregisterSession(id string)
	addBytesSent(n int64)
	addBytesReceived(n int64)
	addBytesPending(delta int64)
}

// StreamSession owns one socket: an async read loop, a double-buffered
// send queue, and the lifecycle hooks of spec.md §4.B. It is transport
// agnostic — TCP, TLS (once handshaked) and Unix-domain sockets all
// produce a net.Conn and are driven identically from here.
type StreamSession struct {
	ID string

	owner sessionOwner
	conn  net.Conn

	opts SocketOptions
	log  logging.LeveledLogger

	connected atomic.Bool
	armed     atomic.Bool // false while a TLS handshake is outstanding

	sendMu      sync.Mutex
	main        *Buffer
	flush       *Buffer
	flushOffset int
	sending     bool

	bytesPending  int64
	bytesSending  int64
	bytesSent     int64
	bytesReceived int64

	recvCap int

	Hooks Hooks
}

// NewStreamSession allocates a disconnected session. Connect must be
// called (normally by a StreamServer's accept loop, or a client's own
// connect path) before any I/O occurs.
func NewStreamSession(opts SocketOptions, log logging.LeveledLogger) *StreamSession {
	s := &StreamSession{
		ID:      nuid.Next(),
		opts:    opts,
		log:     namedLogger(log, "session"),
		main:    NewBuffer(0),
		flush:   NewBuffer(0),
		recvCap: defaultReceiveBufferSize,
	}
	s.armed.Store(true)
	return s
}

// IsConnected reports whether the session currently owns a live socket.
func (s *StreamSession) IsConnected() bool { return s.connected.Load() }

func (s *StreamSession) BytesPending() int64  { return atomic.LoadInt64(&s.bytesPending) }
func (s *StreamSession) BytesSending() int64  { return atomic.LoadInt64(&s.bytesSending) }
func (s *StreamSession) BytesSent() int64     { return atomic.LoadInt64(&s.bytesSent) }
func (s *StreamSession) BytesReceived() int64 { return atomic.LoadInt64(&s.bytesReceived) }

// setOwner installs the back-reference to the owning server. Called once,
// by the acceptor, before Connect.
func (s *StreamSession) setOwner(owner sessionOwner) { s.owner = owner }

// Connect installs the socket, applies configured socket options, resets
// counters, and schedules the first receive. armed controls whether the
// read/write pipeline starts immediately (false for a session still
// awaiting a TLS handshake; tls_session.go arms it once handshaked).
func (s *StreamSession) Connect(conn net.Conn, armed bool) {
	s.Hooks.fireConnecting()

	s.conn = conn
	applySocketOptions(conn, s.opts, s.log)

	s.sendMu.Lock()
	s.main.Clear()
	s.flush.Clear()
	s.flushOffset = 0
	s.sending = false
	s.sendMu.Unlock()
	atomic.StoreInt64(&s.bytesPending, 0)
	atomic.StoreInt64(&s.bytesSending, 0)
	atomic.StoreInt64(&s.bytesSent, 0)
	atomic.StoreInt64(&s.bytesReceived, 0)

	s.armed.Store(armed)
	s.connected.Store(true)

	s.Hooks.fireConnected()
	s.Hooks.fireEmptySendBuffer()

	if armed {
		s.arm()
	}
}

// arm starts the receive loop. Safe to call once, after Connect(conn,
// false) and a subsequent successful handshake.
func (s *StreamSession) arm() {
	s.armed.Store(true)
	go s.receiveLoop()
	if atomic.LoadInt64(&s.bytesPending) > 0 {
		s.kickWriteLoop()
	}
}

// SendAsync is the non-blocking send entry point. It appends to the main
// buffer under the send lock and, if no write is currently in flight,
// starts one. It returns false (without appending) if the session is not
// connected or the configured send buffer limit would be exceeded.
func (s *StreamSession) SendAsync(data []byte) (bool, error) {
	if !s.connected.Load() {
		return false, ErrNotConnected
	}
	s.sendMu.Lock()
	limit := sendBufferLimitForSession(s.opts)
	if limit >= 0 && int(atomic.LoadInt64(&s.bytesPending))+len(data) > limit {
		s.sendMu.Unlock()
		s.Hooks.fireError(ErrBufferOverflow, ErrNoBufferSpace)
		return false, ErrNoBufferSpace
	}
	s.main.Append(data)
	atomic.AddInt64(&s.bytesPending, int64(len(data)))
	if s.owner != nil {
		s.owner.addBytesPending(int64(len(data)))
	}
	startWrite := !s.sending
	s.sendMu.Unlock()

	if startWrite && s.armed.Load() {
		s.kickWriteLoop()
	}
	return true, nil
}

// SendSync writes directly to the OS, bypassing the send queue, and fires
// OnSent synchronously. A write failure triggers Disconnect.
func (s *StreamSession) SendSync(data []byte) (int, error) {
	if !s.connected.Load() {
		return 0, ErrNotConnected
	}
	n, err := s.conn.Write(data)
	if err != nil {
		s.handleIOError(err)
		return n, err
	}
	atomic.AddInt64(&s.bytesSent, int64(n))
	if s.owner != nil {
		s.owner.addBytesSent(int64(n))
	}
	s.Hooks.fireSent(n, int(atomic.LoadInt64(&s.bytesPending)+atomic.LoadInt64(&s.bytesSending)))
	return n, nil
}

// kickWriteLoop performs the main/flush role swap (if flush has drained)
// and, if there is now something to write, spawns the single writer
// goroutine for this session. At most one write goroutine runs per
// session at a time.
func (s *StreamSession) kickWriteLoop() {
	s.sendMu.Lock()
	if s.sending {
		s.sendMu.Unlock()
		return
	}
	if s.flush.Size() == 0 {
		s.main, s.flush = s.flush, s.main
		s.flushOffset = 0
		pending := atomic.LoadInt64(&s.bytesPending) - int64(s.flush.Size())
		if pending < 0 {
			pending = 0
		}
		atomic.StoreInt64(&s.bytesPending, pending)
		atomic.StoreInt64(&s.bytesSending, int64(s.flush.Size()))
	}
	if s.flush.Size() == 0 {
		s.sendMu.Unlock()
		return
	}
	s.sending = true
	s.sendMu.Unlock()
	go s.writeLoop()
}

// writeLoop drains the flush buffer with a single continuous OS write per
// snapshot, swapping in new main-buffer data as it becomes available,
// until the send queue is empty.
func (s *StreamSession) writeLoop() {
	for {
		s.sendMu.Lock()
		if s.flush.Size()-s.flushOffset == 0 {
			s.sending = false
			s.sendMu.Unlock()
			return
		}
		chunk := s.flush.Bytes()[s.flushOffset:]
		s.sendMu.Unlock()

		n, err := s.conn.Write(chunk)
		if err != nil {
			s.sendMu.Lock()
			s.sending = false
			s.sendMu.Unlock()
			s.handleIOError(err)
			return
		}

		s.sendMu.Lock()
		s.flushOffset += n
		atomic.AddInt64(&s.bytesSent, int64(n))
		if s.owner != nil {
			s.owner.addBytesSent(int64(n))
		}
		drained := s.flush.Size()-s.flushOffset == 0
		if drained {
			s.flush.Clear()
			s.flushOffset = 0
		}
		atomic.StoreInt64(&s.bytesSending, int64(s.flush.Size()-s.flushOffset))
		pendingAfter := int(atomic.LoadInt64(&s.bytesPending) + atomic.LoadInt64(&s.bytesSending))
		s.sendMu.Unlock()

		s.Hooks.fireSent(n, pendingAfter)

		if drained {
			s.sendMu.Lock()
			if s.main.Size() == 0 {
				s.sending = false
				s.sendMu.Unlock()
				s.Hooks.fireEmptySendBuffer()
				return
			}
			// Swap again: new data arrived in main while we were writing.
			s.main, s.flush = s.flush, s.main
			s.flushOffset = 0
			pending := atomic.LoadInt64(&s.bytesPending) - int64(s.flush.Size())
			if pending < 0 {
				pending = 0
			}
			atomic.StoreInt64(&s.bytesPending, pending)
			atomic.StoreInt64(&s.bytesSending, int64(s.flush.Size()))
			s.sendMu.Unlock()
		}
	}
}

// receiveLoop is the session's single outstanding receive, reissued
// immediately after each hook invocation returns.
func (s *StreamSession) receiveLoop() {
	buf := make([]byte, s.recvCap)
	limit := receiveBufferLimitForSession(s.opts)
	for s.connected.Load() {
		n, err := s.conn.Read(buf)
		if err != nil {
			if err == io.EOF {
				s.Disconnect()
				return
			}
			s.handleIOError(err)
			return
		}
		if n == 0 {
			s.Disconnect()
			return
		}
		atomic.AddInt64(&s.bytesReceived, int64(n))
		if s.owner != nil {
			s.owner.addBytesReceived(int64(n))
		}
		s.Hooks.fireReceived(buf[:n])

		if n == len(buf) {
			newCap := len(buf) * 2
			if limit >= 0 && newCap > limit {
				s.Hooks.fireError(ErrBufferOverflow, ErrNoBufferSpace)
				s.Disconnect()
				return
			}
			buf = make([]byte, newCap)
		}
	}
}

// handleIOError classifies a socket error per spec §7 and either
// disconnects silently (transport-peer-gone) or surfaces OnError before
// disconnecting (transport-operational).
func (s *StreamSession) handleIOError(err error) {
	if isPeerGoneError(err) {
		s.Disconnect()
		return
	}
	s.Hooks.fireError(ErrTransportOperational, errors.Wrap(err, "stream session I/O"))
	s.Disconnect()
}

// Disconnect is idempotent and safe to call re-entrantly (including from
// within a hook fired by this very session). It shuts down the socket,
// drops buffered data, unregisters from the owning server, and signals
// OnDisconnected.
func (s *StreamSession) Disconnect() {
	if !s.connected.CompareAndSwap(true, false) {
		return
	}
	s.Hooks.fireDisconnecting()

	if s.conn != nil {
		_ = s.conn.Close()
	}

	s.sendMu.Lock()
	s.main.Clear()
	s.flush.Clear()
	s.flushOffset = 0
	s.sending = false
	s.sendMu.Unlock()
	atomic.StoreInt64(&s.bytesPending, 0)
	atomic.StoreInt64(&s.bytesSending, 0)

	if s.owner != nil {
		s.owner.unregisterSession(s.ID)
	}

	s.Hooks.fireDisconnected()
}
