package transport

import (
	"net"

	"github.com/charmbracelet/log"

	"github.com/dstainton-labs/rudp/internal/config"
	"github.com/dstainton-labs/rudp/reliability"
)

// Server is a Transport bound to a fixed local address at construction, per
// spec.md §4.5.
type Server struct {
	*Transport
}

// NewServer constructs a Server bound to addr.
func NewServer(addr *net.UDPAddr, cfg config.Config, logger *log.Logger, metrics *reliability.Metrics) (*Server, error) {
	t, err := Bind(addr, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	return &Server{Transport: t}, nil
}
