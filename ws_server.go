package netcore

import "github.com/pion/logging"

// WSServer is a TCPServer whose accepted sessions perform the RFC 6455
// server-side upgrade handshake before their byte stream is handed off
// to a WSEngine (spec §4.H). NewHooks, if set, is called once per
// accepted session to produce its WSHooks (so callers can close over
// per-connection state).
type WSServer struct {
	*TCPServer

	opts SocketOptions
	log  logging.LeveledLogger

	NewHooks func() WSHooks
}

func NewWSServer(addr string, opts SocketOptions, backlog int, log logging.LeveledLogger) *WSServer {
	s := &WSServer{opts: opts, log: namedLogger(log, "ws-server")}
	s.TCPServer = NewTCPServer(addr, opts, backlog, s.newSession, log)
	return s
}

func (s *WSServer) newSession() *StreamSession {
	session := NewStreamSession(s.opts, s.log)
	ws := newWSSession(session, false, s.log)
	if s.NewHooks != nil {
		ws.Engine.Hooks = s.NewHooks()
	}

	ws.http.Hooks.OnReceivedRequest = func(req *HTTPRequest) {
		resp, err := ws.Engine.BuildUpgradeResponse(req)
		if err != nil {
			if ws.Engine.Hooks.OnError != nil {
				ws.Engine.Hooks.OnError(err)
			}
			session.Disconnect()
			return
		}
		if ws.Engine.Hooks.OnConnecting != nil {
			ws.Engine.Hooks.OnConnecting(req)
		}
		if _, err := ws.http.SendResponse(resp); err != nil {
			session.Disconnect()
			return
		}
		ws.handOff()
		if ws.Engine.Hooks.OnConnected != nil {
			ws.Engine.Hooks.OnConnected()
		}
	}

	prevDisconnected := session.Hooks.OnDisconnected
	session.Hooks.OnDisconnected = func() {
		if ws.Engine.Hooks.OnDisconnected != nil {
			ws.Engine.Hooks.OnDisconnected()
		}
		if prevDisconnected != nil {
			prevDisconnected()
		}
	}

	return session
}
