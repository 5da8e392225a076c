package netcore

import (
	"crypto/sha1" //nolint:gosec // part of the RFC 6455 accept-key algorithm, not used for security
	"encoding/base64"
	"encoding/binary"
	"strings"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pkg/errors"
)

// WSOpcode is a WebSocket frame opcode (RFC 6455 §11.8).
type WSOpcode byte

const (
	WSContinuation WSOpcode = 0x0
	WSText         WSOpcode = 0x1
	WSBinary       WSOpcode = 0x2
	WSClose        WSOpcode = 0x8
	WSPing         WSOpcode = 0x9
	WSPong         WSOpcode = 0xA
)

func (op WSOpcode) isControl() bool { return op >= WSClose }

const (
	wsFinBit     = 0x80
	wsMaskBit    = 0x80
	wsMaxControl = 125
)

// wsGUID is the fixed RFC 6455 magic string concatenated with the client
// key before SHA-1 to produce Sec-WebSocket-Accept.
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// WSHooks are the callbacks the WebSocket engine invokes once a session
// has upgraded (spec §4.H).
type WSHooks struct {
	OnConnecting   func(req *HTTPRequest)
	OnConnected    func()
	OnDisconnecting func()
	OnDisconnected func()
	OnReceived     func(data []byte, isText bool)
	OnClose        func(data []byte, status int)
	OnPing         func(data []byte)
	OnPong         func(data []byte)
	OnError        func(err error)
}

// WSEngine is the per-session framing state machine: mask/unmask,
// fragmentation reassembly, control-frame handling, and the upgrade
// handshake. It replaces the HTTP handler on a StreamSession once the
// upgrade succeeds (spec §9: "WebSocket is a handler that *replaces* the
// HTTP handler after a successful upgrade").
type WSEngine struct {
	session *StreamSession
	isClient bool
	log      logging.LeveledLogger
	random   randutil.MathRandomGenerator

	sendMu sync.Mutex

	handshaked bool

	recv *Buffer

	// fragmentation state
	accumulating  bool
	accumOpcode   WSOpcode
	accumulated   *Buffer

	Hooks WSHooks
}

// NewWSEngine constructs an engine bound to session. isClient selects
// masking on send (always true for client-to-server frames per RFC 6455)
// and nonce generation on upgrade.
func NewWSEngine(session *StreamSession, isClient bool, log logging.LeveledLogger) *WSEngine {
	return &WSEngine{
		session:     session,
		isClient:    isClient,
		log:         namedLogger(log, "ws-engine"),
		random:      randutil.NewMathRandomGenerator(),
		recv:        NewBuffer(0),
		accumulated: NewBuffer(0),
	}
}

func (w *WSEngine) IsHandshaked() bool { return w.handshaked }

// --- client-side upgrade request ---

// NewUpgradeRequest builds the client's upgrade request, generating a
// fresh 16-byte nonce for Sec-WebSocket-Key.
func (w *WSEngine) NewUpgradeRequest(url, host string) (*HTTPRequest, string) {
	nonce := make([]byte, 16)
	for i := range nonce {
		nonce[i] = byte(w.random.Intn(256))
	}
	key := base64.StdEncoding.EncodeToString(nonce)

	req := NewHTTPRequest()
	req.SetStartLine("GET", url)
	req.SetHeader("Host", host)
	req.SetHeader("Upgrade", "websocket")
	req.SetHeader("Connection", "Upgrade")
	req.SetHeader("Sec-WebSocket-Key", key)
	req.SetHeader("Sec-WebSocket-Version", "13")
	req.buf.AppendString(crlf)
	return req, key
}

// ValidateUpgradeResponse recomputes the expected accept key from the
// nonce used to build the request and compares it against the server's
// response. On success it marks the engine handshaked.
func (w *WSEngine) ValidateUpgradeResponse(resp *HTTPResponse, key string) error {
	if resp.Status() != 101 {
		return errors.Wrap(ErrUpgradeFailed, "non-101 status")
	}
	accept, ok := resp.HeaderValue("Sec-WebSocket-Accept")
	if !ok || accept != computeAcceptKey(key) {
		return errors.Wrap(ErrUpgradeFailed, "accept key mismatch")
	}
	w.handshaked = true
	return nil
}

// --- server-side upgrade ---

// BuildUpgradeResponse validates an incoming client upgrade request per
// spec §4.H and returns the 101 response to send, or an error if the
// request does not qualify.
func (w *WSEngine) BuildUpgradeResponse(req *HTTPRequest) (*HTTPResponse, error) {
	if !strings.EqualFold(req.Method(), "GET") {
		return nil, errors.Wrap(ErrUpgradeFailed, "method must be GET")
	}
	upgrade, _ := req.HeaderValue("Upgrade")
	conn, _ := req.HeaderValue("Connection")
	version, _ := req.HeaderValue("Sec-WebSocket-Version")
	key, hasKey := req.HeaderValue("Sec-WebSocket-Key")
	if !headerTokenContains(upgrade, "websocket") {
		return nil, errors.Wrap(ErrUpgradeFailed, "missing Upgrade: websocket")
	}
	if !headerTokenContains(conn, "Upgrade") {
		return nil, errors.Wrap(ErrUpgradeFailed, "missing Connection: Upgrade")
	}
	if !hasKey || key == "" {
		return nil, errors.Wrap(ErrUpgradeFailed, "missing Sec-WebSocket-Key")
	}
	if version != "13" {
		return nil, errors.Wrap(ErrUpgradeFailed, "unsupported Sec-WebSocket-Version")
	}

	resp := NewHTTPResponse()
	resp.SetStartLine(101)
	resp.SetHeader("Upgrade", "websocket")
	resp.SetHeader("Connection", "Upgrade")
	resp.SetHeader("Sec-WebSocket-Accept", computeAcceptKey(key))
	resp.buf.AppendString(crlf)

	w.handshaked = true
	return resp, nil
}

func headerTokenContains(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

func computeAcceptKey(key string) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(key))
	h.Write([]byte(wsGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// --- frame emission ---

// prepareFrameHeader writes a frame header for a payload of size l,
// choosing the 7/16/64-bit length encoding, and returns it.
func prepareFrameHeader(final bool, opcode WSOpcode, masked bool, l int) []byte {
	var header []byte
	b0 := byte(opcode)
	if final {
		b0 |= wsFinBit
	}
	switch {
	case l <= 125:
		header = []byte{b0, byte(l)}
	case l <= 65535:
		header = make([]byte, 4)
		header[0] = b0
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:], uint16(l))
	default:
		header = make([]byte, 10)
		header[0] = b0
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(l))
	}
	if masked {
		header[1] |= wsMaskBit
	}
	return header
}

func maskPayload(payload []byte, key [4]byte) {
	for i := range payload {
		payload[i] ^= key[i%4]
	}
}

// PrepareSendFrame builds the wire bytes for a single, final frame
// carrying opcode/payload. If w.isClient, a fresh random mask key is
// generated and the payload is masked in place in the returned copy (the
// caller's slice is left untouched). For close frames, payload must
// already have the 2-byte status code prefix (see Close below).
func (w *WSEngine) PrepareSendFrame(opcode WSOpcode, payload []byte) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)

	masked := w.isClient
	var key [4]byte
	if masked {
		for i := range key {
			key[i] = byte(w.random.Intn(256))
		}
		maskPayload(out, key)
	}

	header := prepareFrameHeader(true, opcode, masked, len(payload))
	frame := make([]byte, 0, len(header)+4+len(out))
	frame = append(frame, header...)
	if masked {
		frame = append(frame, key[:]...)
	}
	frame = append(frame, out...)
	return frame
}

// Send emits a text or binary message, serialized against sendMu so a
// user payload and an auto ping/pong/close response never interleave on
// the wire (spec §4.H).
func (w *WSEngine) Send(opcode WSOpcode, payload []byte) (bool, error) {
	w.sendMu.Lock()
	frame := w.PrepareSendFrame(opcode, payload)
	w.sendMu.Unlock()
	return w.session.SendAsync(frame)
}

func (w *WSEngine) SendText(payload []byte) (bool, error)   { return w.Send(WSText, payload) }
func (w *WSEngine) SendBinary(payload []byte) (bool, error) { return w.Send(WSBinary, payload) }
func (w *WSEngine) SendPing(payload []byte) (bool, error)   { return w.Send(WSPing, payload) }
func (w *WSEngine) SendPong(payload []byte) (bool, error)   { return w.Send(WSPong, payload) }

// Close emits a close frame with the given status code, then disconnects
// the underlying session.
func (w *WSEngine) Close(status int) {
	body := make([]byte, 2)
	binary.BigEndian.PutUint16(body, uint16(status))
	w.sendMu.Lock()
	frame := w.PrepareSendFrame(WSClose, body)
	w.sendMu.Unlock()
	_, _ = w.session.SendSync(frame)
	if w.Hooks.OnDisconnecting != nil {
		w.Hooks.OnDisconnecting()
	}
	w.session.Disconnect()
}

// --- frame reception ---

// RequiredReceiveFrameSize reports how many more bytes are needed, given
// buffered, to complete parsing of the current frame: at least 2 for the
// base header, then the header tail (extended length + mask key), then
// the remaining payload. Returns 0 once a complete frame is buffered.
func (w *WSEngine) RequiredReceiveFrameSize(buffered []byte) int {
	return wsRequiredFrameSize(buffered)
}

func wsRequiredFrameSize(buffered []byte) int {
	if len(buffered) < 2 {
		return 2 - len(buffered)
	}
	masked := buffered[1]&wsMaskBit != 0
	lenField := int(buffered[1] & 0x7F)
	headerLen := 2
	switch lenField {
	case 126:
		headerLen += 2
	case 127:
		headerLen += 8
	}
	if masked {
		headerLen += 4
	}
	if len(buffered) < headerLen {
		return headerLen - len(buffered)
	}
	payloadLen := wsPayloadLength(buffered, lenField)
	total := headerLen + payloadLen
	if len(buffered) < total {
		return total - len(buffered)
	}
	return 0
}

func wsPayloadLength(buf []byte, lenField int) int {
	switch lenField {
	case 126:
		return int(binary.BigEndian.Uint16(buf[2:4]))
	case 127:
		return int(binary.BigEndian.Uint64(buf[2:10]))
	default:
		return lenField
	}
}

type wsDecodedFrame struct {
	final   bool
	opcode  WSOpcode
	payload []byte
}

// decodeFrame attempts to decode one complete frame from the front of
// buf. ok is false if more bytes are needed; consumed is the number of
// bytes to drop from the front on success.
func decodeFrame(buf []byte) (frame wsDecodedFrame, consumed int, ok bool, err error) {
	need := wsRequiredFrameSize(buf)
	if need > 0 {
		return wsDecodedFrame{}, 0, false, nil
	}
	b0, b1 := buf[0], buf[1]
	final := b0&wsFinBit != 0
	opcode := WSOpcode(b0 & 0x0F)
	masked := b1&wsMaskBit != 0
	lenField := int(b1 & 0x7F)

	pos := 2
	switch lenField {
	case 126:
		pos += 2
	case 127:
		pos += 8
	}
	payloadLen := wsPayloadLength(buf, lenField)

	if opcode.isControl() {
		if payloadLen > wsMaxControl {
			return wsDecodedFrame{}, 0, false, errMalformed("control frame payload too large")
		}
		if !final {
			return wsDecodedFrame{}, 0, false, errMalformed("fragmented control frame")
		}
	}

	var key [4]byte
	if masked {
		copy(key[:], buf[pos:pos+4])
		pos += 4
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[pos:pos+payloadLen])
	if masked {
		maskPayload(payload, key)
	}
	consumed = pos + payloadLen
	return wsDecodedFrame{final: final, opcode: opcode, payload: payload}, consumed, true, nil
}

// Feed is installed as the StreamSession's OnReceived handler once the
// upgrade completes. It buffers arbitrarily-split arrivals, decodes every
// complete frame currently available, and dispatches data/control frames.
func (w *WSEngine) Feed(data []byte) {
	w.recv.Append(data)
	for {
		buf := w.recv.Bytes()
		frame, consumed, ok, err := decodeFrame(buf)
		if err != nil {
			if w.Hooks.OnError != nil {
				w.Hooks.OnError(err)
			}
			w.session.Disconnect()
			return
		}
		if !ok {
			return
		}
		remaining := append([]byte(nil), buf[consumed:]...)
		w.recv.Clear()
		w.recv.Append(remaining)
		w.dispatch(frame)
	}
}

func (w *WSEngine) dispatch(frame wsDecodedFrame) {
	switch frame.opcode {
	case WSClose:
		status := 1005
		body := frame.payload
		if len(body) >= 2 {
			status = int(binary.BigEndian.Uint16(body[:2]))
			body = body[2:]
		}
		if w.Hooks.OnClose != nil {
			w.Hooks.OnClose(body, status)
		} else {
			w.Close(status)
		}
		return
	case WSPing:
		if w.Hooks.OnPing != nil {
			w.Hooks.OnPing(frame.payload)
		} else {
			_, _ = w.SendPong(frame.payload)
		}
		return
	case WSPong:
		if w.Hooks.OnPong != nil {
			w.Hooks.OnPong(frame.payload)
		}
		return
	}

	// Data frame (text/binary) or a continuation of one.
	switch frame.opcode {
	case WSText, WSBinary:
		w.accumulating = true
		w.accumOpcode = frame.opcode
		w.accumulated.Clear()
		w.accumulated.Append(frame.payload)
	case WSContinuation:
		w.accumulated.Append(frame.payload)
	}

	if frame.final && w.accumulating {
		msg := append([]byte(nil), w.accumulated.Bytes()...)
		isText := w.accumOpcode == WSText
		w.accumulating = false
		w.accumulated.Clear()
		if w.Hooks.OnReceived != nil {
			w.Hooks.OnReceived(msg, isText)
		}
	}
}
