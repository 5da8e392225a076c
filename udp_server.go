package netcore

import (
	"net"

	"github.com/pion/logging"
	"github.com/pkg/errors"
	"github.com/pion/udp"
)

// UDPServer is the server-side datagram endpoint. It is built on
// github.com/pion/udp, which multiplexes a single UDP socket into
// per-remote-address virtual connections behind a net.Listener-shaped
// Accept loop — so the UDP endpoint can reuse the exact same
// StreamServer acceptor/session-map/broadcast machinery as TCPServer,
// instead of a hand-rolled datagram demux.
type UDPServer struct {
	*StreamServer
	addr string
}

func NewUDPServer(addr string, opts SocketOptions, backlog int, newSession SessionFactory, log logging.LeveledLogger) *UDPServer {
	return &UDPServer{
		StreamServer: NewStreamServer(opts, backlog, newSession, namedLogger(log, "udp-server")),
		addr:         addr,
	}
}

func (s *UDPServer) Start() error {
	laddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return errors.Wrap(err, "netcore: resolve udp listen addr")
	}
	l, err := udp.Listen("udp", laddr)
	if err != nil {
		return errors.Wrap(err, "netcore: udp server listen")
	}
	go s.Serve(l)
	return nil
}
