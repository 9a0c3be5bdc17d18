package profile

import (
	"time"

	"github.com/KarelPeeters/wtf/internal/proctree"
	"github.com/KarelPeeters/wtf/internal/syscalls"
)

// SyscallEvent is one finished syscall, or one cut short by the death of
// its process when Unterminated is set.
type SyscallEvent struct {
	Key          proctree.Key
	Arch         uint32
	Nr           uint64
	Entry        time.Time
	Exit         time.Time
	Ret          int64
	Unterminated bool
}

// Duration returns Exit - Entry, clamped at zero.
func (e SyscallEvent) Duration() time.Duration {
	d := e.Exit.Sub(e.Entry)
	if d < 0 {
		return 0
	}
	return d
}

// SyscallStats is the running summary for one syscall name.
type SyscallStats struct {
	Count        uint64
	Errors       uint64
	Unterminated uint64
	Total        time.Duration
	Min          time.Duration
	Max          time.Duration
}

func (s *SyscallStats) add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Total += d
}

// Average returns Total / Count, or zero for an empty entry.
func (s SyscallStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// ProcessProfile is everything aggregated for one process.
type ProcessProfile struct {
	Syscalls map[string]*SyscallStats
	Busy     time.Duration
	Events   uint64
}

func newProcessProfile() *ProcessProfile {
	return &ProcessProfile{Syscalls: make(map[string]*SyscallStats)}
}

// Clone returns a deep copy of p.
func (p *ProcessProfile) Clone() *ProcessProfile {
	out := &ProcessProfile{
		Syscalls: make(map[string]*SyscallStats, len(p.Syscalls)),
		Busy:     p.Busy,
		Events:   p.Events,
	}
	for name, st := range p.Syscalls {
		dup := *st
		out.Syscalls[name] = &dup
	}
	return out
}

// Aggregator accumulates SyscallEvents per process. It is not safe for
// concurrent use; the session lock guards it.
type Aggregator struct {
	profiles map[proctree.Key]*ProcessProfile
	events   uint64
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{profiles: make(map[proctree.Key]*ProcessProfile)}
}

// Record folds one event into the profile of its process.
func (a *Aggregator) Record(ev SyscallEvent) {
	p, ok := a.profiles[ev.Key]
	if !ok {
		p = newProcessProfile()
		a.profiles[ev.Key] = p
	}

	name := syscalls.NameByArch(ev.Arch, ev.Nr)
	st, ok := p.Syscalls[name]
	if !ok {
		st = &SyscallStats{}
		p.Syscalls[name] = st
	}

	d := ev.Duration()
	st.add(d)
	if ev.Unterminated {
		st.Unterminated++
	} else if ev.Ret < 0 && ev.Ret > -4096 {
		st.Errors++
	}
	p.Busy += d
	p.Events++
	a.events++
}

// Profile returns the live profile of key. The result must not be retained
// outside the session lock; use Clone for that.
func (a *Aggregator) Profile(key proctree.Key) (*ProcessProfile, bool) {
	p, ok := a.profiles[key]
	return p, ok
}

// Events returns the number of events recorded over all processes.
func (a *Aggregator) Events() uint64 {
	return a.events
}
