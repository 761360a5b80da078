package codec

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const DefaultSyncDelay = 100 * time.Millisecond

// Location is the address bar: the current path+query and a replace that
// does not add a history entry.
type Location interface {
	Current() string
	Replace(pathAndQuery string)
}

// AddressSync debounces address-bar writes. It owns a single timer; a new
// Schedule cancels the pending one and Close cancels it for good.
type AddressSync struct {
	loc   Location
	clock clock.Clock
	delay time.Duration

	mu      sync.Mutex
	timer   *clock.Timer
	pending string
	gen     uint64
	closed  bool
}

func NewAddressSync(loc Location, clk clock.Clock, delay time.Duration) *AddressSync {
	if clk == nil {
		clk = clock.New()
	}
	if delay <= 0 {
		delay = DefaultSyncDelay
	}
	return &AddressSync{loc: loc, clock: clk, delay: delay}
}

func (s *AddressSync) Schedule(pathAndQuery string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.loc == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending = pathAndQuery
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

// Pending reports whether a write is waiting on the timer.
func (s *AddressSync) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *AddressSync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *AddressSync) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	target := s.pending
	s.timer = nil
	s.mu.Unlock()

	if s.loc.Current() == target {
		return
	}
	s.loc.Replace(target)
}
