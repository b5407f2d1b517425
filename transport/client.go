package transport

import (
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/reliability"
)

// Client is a Transport with a fixed default peer, per spec.md §4.5. It
// supports set_target for the port-rebinding pattern of spec.md §4.6: the
// application's initial write hits the server's well-known port, and once a
// reply is observed from the server's ephemeral worker port the client
// rebinds its notion of target for the rest of the session.
type Client struct {
	*Transport

	mu     sync.RWMutex
	target net.Addr
}

// NewClient constructs a Client whose default peer is target.
func NewClient(target net.Addr, cfg config.Config, logger *log.Logger, metrics *reliability.Metrics) (*Client, error) {
	t, err := New(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	return &Client{Transport: t, target: target}, nil
}

// Target returns the client's current default peer.
func (c *Client) Target() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

// SetTarget rebinds the client's default peer, per spec.md §4.6. Transport
// state is otherwise untouched: a new stream is lazily created for the new
// peer on the next Send.
func (c *Client) SetTarget(target net.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
}

// Send sends data to the client's current target.
func (c *Client) Send(data []byte) error {
	return c.SendTo(data, c.Target())
}

// Recv blocks until a record from the current target arrives, dropping any
// records from other peers — spec.md §4.5 treats those as spoofed or
// delayed cross-peer traffic.
func (c *Client) Recv() []byte {
	for {
		payload, from := c.RecvFrom()
		if addrEqual(from, c.Target()) {
			return payload
		}
	}
}

func addrEqual(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
