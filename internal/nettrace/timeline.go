// Package nettrace records where the time of one HTTP exchange went.
package nettrace

import (
	"sort"
	"time"
)

type PhaseKind string

const (
	PhaseDNS      PhaseKind = "dns"
	PhaseConnect  PhaseKind = "connect"
	PhaseTLS      PhaseKind = "tls"
	PhaseTTFB     PhaseKind = "ttfb"
	PhaseTransfer PhaseKind = "transfer"
)

// Phase is one finished span of the exchange. Err is "incomplete" for a
// phase still open when the exchange ended.
type Phase struct {
	Kind     PhaseKind     `json:"kind"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Addr     string        `json:"addr,omitempty"`
	Err      string        `json:"error,omitempty"`
}

type Timeline struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Reused   bool          `json:"reused"`
	Phases   []Phase       `json:"phases"`
}

// Sum adds up every phase of kind; redirects can repeat a phase.
func (tl *Timeline) Sum(kind PhaseKind) time.Duration {
	if tl == nil {
		return 0
	}
	var total time.Duration
	for _, p := range tl.Phases {
		if p.Kind == kind {
			total += p.Duration
		}
	}
	return total
}

func sortPhases(phases []Phase) {
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].Start.Before(phases[j].Start)
	})
}
