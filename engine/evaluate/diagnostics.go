package evaluate

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Reason classifies why a branch was excluded.
type Reason string

const (
	ReasonPreviouslyExcluded Reason = "previously excluded"
	ReasonNotRunning         Reason = "service not running on date"
	ReasonDiversionInactive  Reason = "diversion not active on date"
	ReasonMode               Reason = "transport mode not requested"
	ReasonInitialWait        Reason = "initial wait too long"
	ReasonMissedDeparture    Reason = "no departure after arrival"
	ReasonHourWindow         Reason = "hour outside time window"
	ReasonTooLong            Reason = "journey too long"
	ReasonTripChanged        Reason = "trip discontinuity"
	ReasonTooManyChanges     Reason = "too many changes"
	ReasonDominated          Reason = "dominated by earlier cheaper arrival"
	ReasonCannotImprove      Reason = "cannot improve on journeys found"
)

// DefaultSampleLimit bounds the detailed reasons kept by a Diagnostics.
const DefaultSampleLimit = 50

// Diagnostics collects exclusion reasons for one search. It only serves
// operational debugging and is safe for concurrent use.
type Diagnostics struct {
	mu      sync.Mutex
	counts  map[Reason]int
	samples []string
	limit   int
	dropped int
}

// NewDiagnostics creates a collector keeping at most limit detailed samples.
func NewDiagnostics(limit int) *Diagnostics {
	if limit < 0 {
		limit = 0
	}
	return &Diagnostics{counts: make(map[Reason]int), limit: limit}
}

// Record counts reason and keeps detail while the sample has room.
func (d *Diagnostics) Record(reason Reason, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[reason]++
	if len(d.samples) < d.limit {
		d.samples = append(d.samples, fmt.Sprintf("%s: %s", reason, detail))
	} else {
		d.dropped++
	}
}

// Counts returns a copy of the per-reason counters.
func (d *Diagnostics) Counts() map[Reason]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[Reason]int, len(d.counts))
	for k, v := range d.counts {
		out[k] = v
	}
	return out
}

// Total returns the number of exclusions recorded.
func (d *Diagnostics) Total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, v := range d.counts {
		n += v
	}
	return n
}

// Report renders the counters, most frequent first, followed by the samples.
func (d *Diagnostics) Report() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.counts) == 0 {
		return "no paths excluded"
	}
	reasons := make([]Reason, 0, len(d.counts))
	for r := range d.counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if d.counts[reasons[i]] != d.counts[reasons[j]] {
			return d.counts[reasons[i]] > d.counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})

	var b strings.Builder
	b.WriteString("excluded paths:\n")
	for _, r := range reasons {
		fmt.Fprintf(&b, "  %-34s %d\n", r, d.counts[r])
	}
	if len(d.samples) > 0 {
		b.WriteString("samples:\n")
		for _, s := range d.samples {
			fmt.Fprintf(&b, "  %s\n", s)
		}
		if d.dropped > 0 {
			fmt.Fprintf(&b, "  ... %d more\n", d.dropped)
		}
	}
	return b.String()
}
