package nettrace

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type open struct {
	start time.Time
	addr  string
}

// Collector is fed by httptrace callbacks, which may fire on other
// goroutines.
type Collector struct {
	clock clock.Clock

	mu      sync.Mutex
	started time.Time
	reused  bool
	active  map[PhaseKind]open
	phases  []Phase
}

func NewCollector(clk clock.Clock) *Collector {
	if clk == nil {
		clk = clock.New()
	}
	return &Collector{clock: clk, active: make(map[PhaseKind]open)}
}

func (c *Collector) Begin(kind PhaseKind, addr string) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		c.started = now
	}
	c.active[kind] = open{start: now, addr: addr}
}

// End closes kind. Ending a phase that never began is a no-op.
func (c *Collector) End(kind PhaseKind, err error) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.active[kind]
	if !ok {
		return
	}
	delete(c.active, kind)
	p := Phase{Kind: kind, Start: o.start, Duration: now.Sub(o.start), Addr: o.addr}
	if err != nil {
		p.Err = err.Error()
	}
	c.phases = append(c.phases, p)
}

// Timeline closes whatever is still open and returns the phases in start
// order. It returns nil when nothing was recorded.
func (c *Collector) Timeline() *Timeline {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, o := range c.active {
		c.phases = append(c.phases, Phase{
			Kind: kind, Start: o.start, Duration: now.Sub(o.start), Addr: o.addr, Err: "incomplete",
		})
	}
	c.active = make(map[PhaseKind]open)
	if c.started.IsZero() {
		return nil
	}
	phases := make([]Phase, len(c.phases))
	copy(phases, c.phases)
	sortPhases(phases)
	return &Timeline{
		Started:  c.started,
		Duration: now.Sub(c.started),
		Reused:   c.reused,
		Phases:   phases,
	}
}

// WithTrace attaches c to ctx. The first response byte ends ttfb and
// starts transfer; the caller ends transfer once the body is read.
func WithTrace(ctx context.Context, c *Collector) context.Context {
	trace := &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			c.Begin(PhaseConnect, hostPort)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			c.mu.Lock()
			c.reused = c.reused || info.Reused
			c.mu.Unlock()
			c.End(PhaseConnect, nil)
		},
		DNSStart: func(info httptrace.DNSStartInfo) {
			c.Begin(PhaseDNS, info.Host)
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			c.End(PhaseDNS, info.Err)
		},
		TLSHandshakeStart: func() {
			c.Begin(PhaseTLS, "")
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			c.End(PhaseTLS, err)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			c.Begin(PhaseTTFB, "")
		},
		GotFirstResponseByte: func() {
			c.End(PhaseTTFB, nil)
			c.Begin(PhaseTransfer, "")
		},
	}
	return httptrace.WithClientTrace(ctx, trace)
}
