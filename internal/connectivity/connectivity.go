package connectivity

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bnema/vibeview/internal/models"
)

// Checker reports whether the network is reachable
type Checker interface {
	Online(ctx context.Context) bool
}

// DialFunc matches net.Dialer.DialContext
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober considers the network online when any configured host accepts a TCP
// connection within the timeout.
type Prober struct {
	hosts   []string
	timeout time.Duration
	dial    DialFunc
}

// New creates a prober from config
func New(cfg models.ConnectivityConfig) *Prober {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	d := &net.Dialer{}
	return &Prober{hosts: cfg.Hosts, timeout: timeout, dial: d.DialContext}
}

// WithDialer replaces the dial function
func (p *Prober) WithDialer(dial DialFunc) *Prober {
	p.dial = dial
	return p
}

// Online dials every host concurrently and returns on the first success
func (p *Prober) Online(ctx context.Context) bool {
	if len(p.hosts) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make(chan bool, len(p.hosts))
	for _, host := range p.hosts {
		go func(addr string) {
			conn, err := p.dial(ctx, "tcp", addr)
			if err != nil {
				log.Debug().Err(err).Str("host", addr).Msg("Connectivity probe failed")
				results <- false
				return
			}
			_ = conn.Close()
			results <- true
		}(host)
	}

	for range p.hosts {
		if <-results {
			return true
		}
	}
	return false
}

// Fixed is a Checker with a constant answer
type Fixed bool

// Online returns the fixed value
func (f Fixed) Online(context.Context) bool { return bool(f) }
