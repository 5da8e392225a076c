package netcore

import (
	"net"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// UDSClient is a local stream endpoint over a filesystem rendezvous (Unix
// domain socket), sharing the StreamSession engine with TCPClient.
type UDSClient struct {
	*StreamSession
	path string
}

func NewUDSClient(path string, opts SocketOptions, log logging.LeveledLogger) *UDSClient {
	return &UDSClient{
		StreamSession: NewStreamSession(opts, namedLogger(log, "uds-client")),
		path:          path,
	}
}

func (c *UDSClient) Connect() error {
	conn, err := net.Dial("unix", c.path)
	if err != nil {
		return errors.Wrap(err, "netcore: uds client dial")
	}
	c.StreamSession.Connect(conn, true)
	return nil
}
