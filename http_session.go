package netcore

import (
	"github.com/pion/logging"
)

// ContentCache is the static-content lookup contract an HTTPServer
// consults for GET requests (spec §4.G): "Find(path) -> Option<bytes>".
// Implementations must be safe for concurrent use; a cache hit is sent
// directly via SendAsync without touching the filesystem on the request
// path.
type ContentCache interface {
	Find(path string) ([]byte, bool)
}

// HTTPHooks are the message-level lifecycle callbacks layered over a
// StreamSession's raw byte hooks (spec §4.E/F): received_header fires
// once the header block is parsed, received fires once the full message
// (headers plus any body) is complete.
type HTTPHooks struct {
	OnReceivedRequestHeader  func(req *HTTPRequest)
	OnReceivedRequest        func(req *HTTPRequest)
	OnReceivedResponseHeader func(resp *HTTPResponse)
	OnReceivedResponse       func(resp *HTTPResponse)
	OnReceivedError          func(err error)
}

// httpPhase is where an HTTPSession sits within a single message's
// lifecycle (spec §4.E: "if in header phase ... otherwise still in body
// phase").
type httpPhase int

const (
	phaseHeader httpPhase = iota
	phaseBody
)

// HTTPSession drives a StreamSession's raw byte stream through an
// incremental HTTP/1.1 parser, installing itself as the session's single
// OnReceived hook and firing message-level hooks in its place (spec §9:
// the HTTP layer is a handler hung off a plain stream session, the same
// way WSEngine replaces it again after a protocol upgrade).
type HTTPSession struct {
	session  *StreamSession
	log      logging.LeveledLogger
	isClient bool

	phase    httpPhase
	request  *HTTPRequest
	response *HTTPResponse

	Hooks HTTPHooks
}

// NewHTTPSession wraps session, installing the HTTP byte-stream dispatch
// as its OnReceived hook. isClient selects which message type this side
// parses: a client parses HTTPResponse, a server parses HTTPRequest.
func NewHTTPSession(session *StreamSession, isClient bool, log logging.LeveledLogger) *HTTPSession {
	h := &HTTPSession{
		session:  session,
		log:      namedLogger(log, "http"),
		isClient: isClient,
	}
	if isClient {
		h.response = NewHTTPResponse()
	} else {
		h.request = NewHTTPRequest()
	}
	session.Hooks.OnReceived = h.Feed
	return h
}

// Send serializes a request (server->client sessions send responses via
// SendResponse instead) and queues it on the underlying session.
func (h *HTTPSession) Send(req *HTTPRequest) (bool, error) {
	return h.session.SendAsync(req.Bytes())
}

// SendResponse queues a response on the underlying session.
func (h *HTTPSession) SendResponse(resp *HTTPResponse) (bool, error) {
	return h.session.SendAsync(resp.Bytes())
}

// Feed is installed as the StreamSession's OnReceived hook. It advances
// the header/body phase machine and fires the message-level hooks above.
func (h *HTTPSession) Feed(data []byte) {
	if h.phase == phaseHeader {
		h.feedHeader(data)
		return
	}
	h.feedBody(data)
}

func (h *HTTPSession) feedHeader(data []byte) {
	var complete bool
	var err error
	if h.isClient {
		complete, err = h.response.ParseHeader(data)
	} else {
		complete, err = h.request.ParseHeader(data)
	}
	if err != nil {
		h.fail(err)
		return
	}
	if !complete {
		return
	}

	if h.isClient {
		if h.Hooks.OnReceivedResponseHeader != nil {
			h.Hooks.OnReceivedResponseHeader(h.response)
		}
	} else if h.Hooks.OnReceivedRequestHeader != nil {
		h.Hooks.OnReceivedRequestHeader(h.request)
	}

	if h.isMessageComplete() {
		h.finishMessage()
		return
	}
	h.phase = phaseBody
}

func (h *HTTPSession) feedBody(data []byte) {
	var complete bool
	if h.isClient {
		complete = h.response.ParseBody(data)
	} else {
		complete = h.request.ParseBody(data)
	}
	if complete {
		h.finishMessage()
	}
}

func (h *HTTPSession) isMessageComplete() bool {
	if h.isClient {
		return h.response.IsComplete()
	}
	return h.request.IsComplete()
}

func (h *HTTPSession) finishMessage() {
	if h.isClient {
		if h.Hooks.OnReceivedResponse != nil {
			h.Hooks.OnReceivedResponse(h.response)
		}
		h.response = NewHTTPResponse()
	} else {
		if h.Hooks.OnReceivedRequest != nil {
			h.Hooks.OnReceivedRequest(h.request)
		}
		h.request = NewHTTPRequest()
	}
	h.phase = phaseHeader
}

// fail handles a protocol-malformed error: it surfaces the error via
// the received_error hook and then disconnects, per spec §7 rule 4 —
// a malformed message is not recoverable mid-stream, so the connection
// does not linger waiting for bytes that will never parse cleanly.
func (h *HTTPSession) fail(err error) {
	if h.Hooks.OnReceivedError != nil {
		h.Hooks.OnReceivedError(err)
	}
	h.session.Disconnect()
}

// FinalizeOnDisconnect performs a best-effort mid-body finalization: on
// transport disconnect mid-body, if the body bytes accumulated so far
// look complete enough, fire the received hook anyway instead of
// dropping the message. A response with no declared Content-Length is
// conventionally terminated
// by connection close, so any body bytes received so far are treated as
// the whole body; a request or response still missing declared bytes is
// dropped silently. Call this from OnDisconnecting.
func (h *HTTPSession) FinalizeOnDisconnect() {
	if h.phase != phaseBody {
		return
	}
	// Only a response can reach phaseBody without a declared
	// Content-Length (spec §4.E: bodyless requests never leave the
	// header phase); such a response is conventionally terminated by
	// connection close, so whatever body arrived so far is the whole
	// body. A request or response with a declared but unmet
	// Content-Length is dropped: its body is not "complete enough".
	if h.isClient && !h.response.bodyLengthProvided && h.response.headersDone {
		if h.Hooks.OnReceivedResponse != nil {
			h.Hooks.OnReceivedResponse(h.response)
		}
	}
}
