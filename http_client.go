package netcore

import (
	"context"
	"sync"

	"github.com/pion/logging"
)

// HTTPClient is a TCPClient with an HTTP/1.1 message layer on top. HTTP/1.1
// without pipelining means one request is ever in flight: Send blocks
// until a full response is parsed, ctx is done, or the session
// disconnects (spec §4.F: "future completed by received or failed by
// timeout/disconnect; timer cancelled on completion" — here the "timer"
// is whatever deadline the caller's context carries).
type HTTPClient struct {
	*TCPClient
	http *HTTPSession

	mu      sync.Mutex
	pending chan *HTTPResponse
	failed  chan error
}

func NewHTTPClient(addr string, opts SocketOptions, log logging.LeveledLogger) *HTTPClient {
	tcp := NewTCPClient(addr, opts, log)
	c := &HTTPClient{TCPClient: tcp}
	c.http = NewHTTPSession(tcp.StreamSession, true, namedLogger(log, "http-client"))
	c.http.Hooks.OnReceivedResponse = c.onResponse
	c.http.Hooks.OnReceivedError = c.onError

	prevDisconnecting := tcp.Hooks.OnDisconnecting
	tcp.Hooks.OnDisconnecting = func() {
		c.http.FinalizeOnDisconnect()
		if prevDisconnecting != nil {
			prevDisconnecting()
		}
	}
	prevDisconnected := tcp.Hooks.OnDisconnected
	tcp.Hooks.OnDisconnected = func() {
		c.failPending(ErrNotConnected)
		if prevDisconnected != nil {
			prevDisconnected()
		}
	}
	return c
}

func (c *HTTPClient) onResponse(resp *HTTPResponse) {
	c.mu.Lock()
	ch := c.pending
	c.pending, c.failed = nil, nil
	c.mu.Unlock()
	if ch != nil {
		ch <- resp
	}
}

func (c *HTTPClient) onError(err error) {
	c.failPending(err)
}

func (c *HTTPClient) failPending(err error) {
	c.mu.Lock()
	ch := c.failed
	c.pending, c.failed = nil, nil
	c.mu.Unlock()
	if ch != nil {
		ch <- err
	}
}

// Send issues req and blocks until a full response is parsed, ctx is
// done, or the session disconnects, whichever comes first. Only one
// request may be outstanding at a time.
func (c *HTTPClient) Send(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	respCh := make(chan *HTTPResponse, 1)
	errCh := make(chan error, 1)
	c.pending, c.failed = respCh, errCh
	c.mu.Unlock()

	if ok, err := c.http.Send(req); !ok {
		c.mu.Lock()
		c.pending, c.failed = nil, nil
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		c.mu.Lock()
		c.pending, c.failed = nil, nil
		c.mu.Unlock()
		return nil, newError(ErrTimeout, ctx.Err())
	}
}
