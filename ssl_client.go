package netcore

import (
	"crypto/tls"
	"net"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// SSLClient is the TLS-secured variant of TCPClient.
type SSLClient struct {
	*TLSSession
	addr string
}

func NewSSLClient(addr string, opts SocketOptions, config *tls.Config, log logging.LeveledLogger) *SSLClient {
	return &SSLClient{
		TLSSession: NewTLSSession(opts, config, namedLogger(log, "ssl-client")),
		addr:       addr,
	}
}

// Connect dials addr over plain TCP, then starts the TLS handshake on top.
func (c *SSLClient) Connect() error {
	raw, err := net.Dial("tcp", c.addr)
	if err != nil {
		return errors.Wrap(err, "netcore: ssl client dial")
	}
	c.TLSSession.ConnectClient(raw)
	return nil
}
