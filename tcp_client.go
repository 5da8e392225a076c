package netcore

import (
	"net"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// TCPClient is a reliable stream client endpoint. It owns a StreamSession
// and drives its connect path directly (rather than through a
// StreamServer acceptor).
type TCPClient struct {
	*StreamSession
	addr string
}

// NewTCPClient constructs a disconnected TCP client for addr ("host:port").
func NewTCPClient(addr string, opts SocketOptions, log logging.LeveledLogger) *TCPClient {
	return &TCPClient{
		StreamSession: NewStreamSession(opts, namedLogger(log, "tcp-client")),
		addr:          addr,
	}
}

// Connect dials addr and arms the session's read/write pipeline.
func (c *TCPClient) Connect() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return errors.Wrap(err, "netcore: tcp client dial")
	}
	c.StreamSession.Connect(conn, true)
	return nil
}
