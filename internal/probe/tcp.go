// Package probe decides whether the server is accepting connections.
package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/loykin/cockpit/internal/metrics"
)

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 3847
	DefaultTimeout  = 8 * time.Second
	DefaultInterval = 200 * time.Millisecond
)

// Dialer matches (*net.Dialer).DialContext.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Result is the outcome of one Wait.
type Result struct {
	Ready    bool
	Elapsed  time.Duration
	Attempts int
}

// Address joins host and port, defaulting host to the loopback address.
func Address(host string, port int) string {
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// TCPProber polls a TCP address at a fixed interval until a connect succeeds
// or the timeout budget is used up.
type TCPProber struct {
	address  string
	interval time.Duration
	timeout  time.Duration
	dial     Dialer
	clock    Clock
}

type Option func(*TCPProber)

func WithInterval(d time.Duration) Option {
	return func(p *TCPProber) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *TCPProber) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithDialer(d Dialer) Option {
	return func(p *TCPProber) {
		if d != nil {
			p.dial = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(p *TCPProber) {
		if c != nil {
			p.clock = c
		}
	}
}

func NewTCP(address string, opts ...Option) *TCPProber {
	p := &TCPProber{
		address:  address,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		dial:     (&net.Dialer{}).DialContext,
		clock:    realClock{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *TCPProber) Address() string         { return p.address }
func (p *TCPProber) Timeout() time.Duration  { return p.timeout }
func (p *TCPProber) Interval() time.Duration { return p.interval }

// Wait polls until the address accepts a connection or the timeout elapses.
// There is no backoff. A port that becomes connectable at T is reported ready
// by T plus one interval; a port that never does is reported not ready after
// at least the timeout and at most one interval more. Cancelling ctx ends the
// wait early with a not-ready result.
func (p *TCPProber) Wait(ctx context.Context) Result {
	start := p.clock.Now()
	deadline := start.Add(p.timeout)
	var res Result
	for {
		res.Attempts++
		if p.try(ctx, deadline) {
			res.Ready = true
			break
		}
		now := p.clock.Now()
		if !now.Before(deadline) || ctx.Err() != nil {
			break
		}
		if err := p.clock.Sleep(ctx, min(p.interval, deadline.Sub(now))); err != nil {
			break
		}
	}
	res.Elapsed = p.clock.Now().Sub(start)
	metrics.ObserveReadinessWait(res.Ready, res.Elapsed.Seconds())
	return res
}

// try makes one connect attempt. The attempt may use the rest of the budget
// but always gets at least one interval so the last attempt is meaningful.
func (p *TCPProber) try(ctx context.Context, deadline time.Time) bool {
	budget := max(deadline.Sub(p.clock.Now()), p.interval)
	dctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	conn, err := p.dial(dctx, "tcp", p.address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
