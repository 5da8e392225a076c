package netcore

import (
	"path"

	"github.com/pion/logging"
)

// HTTPHandler lets callers handle a request directly instead of (or
// after) consulting the static-content cache (spec §4.G).
type HTTPHandler func(session *HTTPSession, req *HTTPRequest)

// HTTPServer is a TCPServer whose accepted sessions speak HTTP/1.1. GET
// requests are served straight from Cache when one is configured and
// holds the path; everything else (including a cache miss) is handed to
// Handler if set, or answered 404.
type HTTPServer struct {
	*TCPServer

	Cache   ContentCache
	Handler HTTPHandler

	opts SocketOptions
	log  logging.LeveledLogger
}

func NewHTTPServer(addr string, opts SocketOptions, backlog int, log logging.LeveledLogger) *HTTPServer {
	s := &HTTPServer{opts: opts, log: namedLogger(log, "http-server")}
	s.TCPServer = NewTCPServer(addr, opts, backlog, s.newSession, log)
	return s
}

func (s *HTTPServer) newSession() *StreamSession {
	session := NewStreamSession(s.opts, s.log)
	http := NewHTTPSession(session, false, s.log)
	http.Hooks.OnReceivedRequest = func(req *HTTPRequest) { s.dispatch(http, req) }
	http.Hooks.OnReceivedError = func(err error) {
		session.Hooks.fireError(ErrProtocolMalformed, err)
	}

	prevDisconnecting := session.Hooks.OnDisconnecting
	session.Hooks.OnDisconnecting = func() {
		http.FinalizeOnDisconnect()
		if prevDisconnecting != nil {
			prevDisconnecting()
		}
	}
	return session
}

func (s *HTTPServer) dispatch(session *HTTPSession, req *HTTPRequest) {
	if req.Method() == "GET" && s.Cache != nil {
		if body, ok := s.Cache.Find(req.URL()); ok {
			resp := NewContentResponse(MIMETypeForExtension(path.Ext(req.URL())), body)
			_, _ = session.SendResponse(resp)
			return
		}
	}

	if s.Handler != nil {
		s.Handler(session, req)
		return
	}

	resp := NewHTTPResponse()
	resp.SetStartLine(404)
	resp.SetHeader("Content-Type", "text/plain")
	resp.SetBodyText("Not Found")
	_, _ = session.SendResponse(resp)
}
