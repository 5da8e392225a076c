package netcore

import "github.com/nats-io/nats.go"

// Relay publishes data handed to Publish onto an external NATS subject,
// and forwards anything published to that subject back out to every
// locally connected session via StreamServer.Broadcast; Broadcast itself
// does not publish to NATS (spec §3 DOMAIN STACK: optional multi-process
// broadcast in front of StreamServer.Broadcast's in-process fan-out).
type Relay struct {
	nc      *nats.Conn
	subject string
	server  *StreamServer
	sub     *nats.Subscription
}

// NewRelay connects to the NATS server at url and subscribes subject,
// forwarding every message received there into server.Broadcast.
func NewRelay(url, subject string, server *StreamServer) (*Relay, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	r := &Relay{nc: nc, subject: subject, server: server}
	sub, err := nc.Subscribe(subject, r.onMessage)
	if err != nil {
		nc.Close()
		return nil, err
	}
	r.sub = sub
	return r, nil
}

func (r *Relay) onMessage(msg *nats.Msg) {
	r.server.Broadcast(msg.Data)
}

// Publish forwards data onto the relay's subject, for fanning a locally
// originated message out to every other process subscribed to it.
func (r *Relay) Publish(data []byte) error {
	return r.nc.Publish(r.subject, data)
}

// Close unsubscribes and closes the NATS connection.
func (r *Relay) Close() error {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	r.nc.Close()
	return nil
}
