package netcore

import (
	"context"
	"net"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// TCPServer binds a TCP listener and drives a StreamServer accept loop
// over it.
type TCPServer struct {
	*StreamServer
	addr string
}

// NewTCPServer constructs a server listening on addr ("host:port"). Each
// accepted connection is handed to newSession via the acceptor.
func NewTCPServer(addr string, opts SocketOptions, backlog int, newSession SessionFactory, log logging.LeveledLogger) *TCPServer {
	return &TCPServer{
		StreamServer: NewStreamServer(opts, backlog, newSession, namedLogger(log, "tcp-server")),
		addr:         addr,
	}
}

// Start binds and begins accepting in a background goroutine. DualMode
// (spec §6) selects the listening socket's address family: false binds
// IPv4-only ("tcp4"), true lets the OS bind a dual-stack IPv4/IPv6
// wildcard socket ("tcp") the way a bare "tcp" listen on an unspecified
// address already does on most platforms.
func (s *TCPServer) Start() error {
	network := "tcp4"
	if s.opts.DualMode {
		network = "tcp"
	}
	lc := net.ListenConfig{Control: listenerControl(s.opts)}
	l, err := lc.Listen(context.Background(), network, s.addr)
	if err != nil {
		return errors.Wrap(err, "netcore: tcp server listen")
	}
	go s.Serve(l)
	return nil
}
