package netcore

import (
	"net"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// UDPClient is an unreliable, unicast (or multicast-joined) datagram
// endpoint. Unlike the stream transports it has no fragmentation or
// ordering guarantee — each SendAsync/OnReceived call corresponds to exactly
// one datagram, matching spec.md §1's "trivial variant of the stream
// engine with no fragmentation".
type UDPClient struct {
	conn      *net.UDPConn
	remote    *net.UDPAddr
	opts      SocketOptions
	log       logging.LeveledLogger
	connected bool

	Hooks Hooks
}

func NewUDPClient(addr string, opts SocketOptions, log logging.LeveledLogger) (*UDPClient, error) {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "netcore: resolve udp addr")
	}
	return &UDPClient{remote: remote, opts: opts, log: namedLogger(log, "udp-client")}, nil
}

// Connect opens the local UDP socket (no handshake exists for datagrams;
// "connecting" simply means filtering incoming packets to the remote
// peer) and starts the receive loop.
func (c *UDPClient) Connect() error {
	c.Hooks.fireConnecting()
	conn, err := net.DialUDP("udp", nil, c.remote)
	if err != nil {
		return errors.Wrap(err, "netcore: udp dial")
	}
	c.conn = conn
	c.connected = true
	c.Hooks.fireConnected()
	go c.receiveLoop()
	return nil
}

// JoinMulticastGroup re-binds the client's local socket to listen for
// datagrams sent to the given multicast group on iface (nil selects the
// default system interface), mirroring NetCoreServer's
// UdpClient.JoinMulticastGroup/SetupMulticast surface.
func (c *UDPClient) JoinMulticastGroup(group string, iface *net.Interface) error {
	addr, err := net.ResolveUDPAddr("udp", group)
	if err != nil {
		return errors.Wrap(err, "netcore: resolve multicast group")
	}
	conn, err := net.ListenMulticastUDP("udp", iface, addr)
	if err != nil {
		return errors.Wrap(err, "netcore: join multicast group")
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.connected = true
	go c.receiveLoop()
	return nil
}

// SendAsync sends one datagram to the configured remote endpoint.
func (c *UDPClient) SendAsync(data []byte) (bool, error) {
	if !c.connected {
		return false, ErrNotConnected
	}
	n, err := c.conn.Write(data)
	if err != nil {
		c.Hooks.fireError(ErrTransportOperational, errors.Wrap(err, "netcore: udp write"))
		return false, err
	}
	c.Hooks.fireSent(n, 0)
	return true, nil
}

func (c *UDPClient) receiveLoop() {
	buf := make([]byte, 65536)
	for c.connected {
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if isPeerGoneError(err) {
				c.Disconnect()
				return
			}
			c.Hooks.fireError(ErrTransportOperational, errors.Wrap(err, "netcore: udp read"))
			c.Disconnect()
			return
		}
		c.Hooks.fireReceived(buf[:n])
	}
}

func (c *UDPClient) Disconnect() {
	if !c.connected {
		return
	}
	c.connected = false
	c.Hooks.fireDisconnecting()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.Hooks.fireDisconnected()
}
