package netcore

import (
	"net"

	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// WSClient dials a TCP connection, performs the RFC 6455 client-side
// upgrade handshake, then hands its byte stream off to a WSEngine.
type WSClient struct {
	*StreamSession
	addr string
	url  string
	host string

	ws       *WSSession
	key      string
	upgraded chan error
}

func NewWSClient(addr, url, host string, opts SocketOptions, log logging.LeveledLogger) *WSClient {
	session := NewStreamSession(opts, namedLogger(log, "ws-client"))
	c := &WSClient{
		StreamSession: session,
		addr:          addr,
		url:           url,
		host:          host,
		upgraded:      make(chan error, 1),
	}
	c.ws = newWSSession(session, true, log)
	c.ws.http.Hooks.OnReceivedResponse = c.onUpgradeResponse
	return c
}

func (c *WSClient) Engine() *WSEngine { return c.ws.Engine }

// Connect dials addr, sends the upgrade request, and blocks until the
// server's response has been validated (or rejected).
func (c *WSClient) Connect() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return errors.Wrap(err, "netcore: ws client dial")
	}
	c.StreamSession.Connect(conn, true)

	req, key := c.ws.Engine.NewUpgradeRequest(c.url, c.host)
	c.key = key
	if _, err := c.ws.http.Send(req); err != nil {
		return err
	}
	return <-c.upgraded
}

func (c *WSClient) onUpgradeResponse(resp *HTTPResponse) {
	err := c.ws.Engine.ValidateUpgradeResponse(resp, c.key)
	if err == nil {
		c.ws.handOff()
		if c.ws.Engine.Hooks.OnConnected != nil {
			c.ws.Engine.Hooks.OnConnected()
		}
	}
	c.upgraded <- err
}
