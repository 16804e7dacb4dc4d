package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"commvault-ops/src/cvapi"
)

// DefaultInterval is the minimum gap between two printed updates.
const DefaultInterval = 200 * time.Millisecond

// Printer writes job progress lines to out, at most one per interval. A
// change of status is always printed.
type Printer struct {
	out         io.Writer
	clock       clock.Clock
	interval    time.Duration
	mu          sync.Mutex
	lastPrinted time.Time
	lastStatus  string
}

// NewPrinter creates a Printer. A nil clock means the wall clock.
func NewPrinter(out io.Writer, clk clock.Clock) *Printer {
	if clk == nil {
		clk = clock.New()
	}
	return &Printer{out: out, clock: clk, interval: DefaultInterval}
}

// Update is suitable as a dispatch progress callback.
func (p *Printer) Update(s cvapi.JobSummary) {
	if p == nil || p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	if s.Status == p.lastStatus && now.Sub(p.lastPrinted) < p.interval {
		return
	}
	p.lastPrinted = now
	p.lastStatus = s.Status
	fmt.Fprintln(p.out, Line(s))
}

// Line renders one summary.
func Line(s cvapi.JobSummary) string {
	line := fmt.Sprintf("[job %s] %s %d%%", s.JobID, s.Status, s.PercentComplete)
	if s.Phase != "" {
		line += " phase=" + s.Phase
	}
	if s.PendingReason != "" {
		line += " pending=" + s.PendingReason
	}
	return line
}
