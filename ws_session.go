package netcore

import "github.com/pion/logging"

// WSSession composes an HTTPSession, used only to drive the upgrade
// handshake, with a WSEngine that takes over framing once the upgrade
// completes. This is spec §9's handler-replacement pattern in the flesh:
// a session starts life handled as HTTP and becomes a WebSocket handler
// in place, by reassigning StreamSession.Hooks.OnReceived, without
// re-wrapping or re-dialing the underlying net.Conn.
type WSSession struct {
	session *StreamSession
	http    *HTTPSession
	Engine  *WSEngine
}

func newWSSession(session *StreamSession, isClient bool, log logging.LeveledLogger) *WSSession {
	return &WSSession{
		session: session,
		http:    NewHTTPSession(session, isClient, namedLogger(log, "ws-session")),
		Engine:  NewWSEngine(session, isClient, log),
	}
}

// handOff swaps the session's receive hook from the HTTP parser to the
// WebSocket framing engine. Safe to call from within the HTTP session's
// own OnReceivedRequest/OnReceivedResponse callback: the receive loop
// delivers one chunk at a time on a single goroutine, so there is no
// concurrent reader to race with the reassignment.
func (w *WSSession) handOff() {
	w.session.Hooks.OnReceived = w.Engine.Feed
}

func (w *WSSession) SendText(payload []byte) (bool, error)   { return w.Engine.SendText(payload) }
func (w *WSSession) SendBinary(payload []byte) (bool, error) { return w.Engine.SendBinary(payload) }
func (w *WSSession) Close(status int)                        { w.Engine.Close(status) }
