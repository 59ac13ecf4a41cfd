package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/burnup/internal/reconstruct"
)

// Stats summarizes one reconstruction run.
type Stats struct {
	Start    time.Time
	End      time.Time
	Skips    map[reconstruct.SkipReason]int
	Warnings map[reconstruct.Warning]int
	RunID    string
	Mode     Mode
	Duration time.Duration
	Days     int
	Rows     int
	mu       sync.Mutex
}

func newStats(mode Mode) *Stats {
	return &Stats{
		Mode:     mode,
		Skips:    make(map[reconstruct.SkipReason]int),
		Warnings: make(map[reconstruct.Warning]int),
	}
}

func (s *Stats) record(outcome reconstruct.Outcome) {
	if !outcome.Skipped() && len(outcome.Warnings) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if outcome.Skipped() {
		s.Skips[outcome.Skip]++
	}
	for _, w := range outcome.Warnings {
		s.Warnings[w]++
	}
}

func (s *Stats) committed(rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Days++
	s.Rows += rows
}

// SkipCounts flattens skips and warnings for the run log.
func (s *Stats) SkipCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.Skips)+len(s.Warnings))
	for reason, n := range s.Skips {
		out[string(reason)] = n
	}
	for warning, n := range s.Warnings {
		out[string(warning)] = n
	}
	return out
}

// TotalSkipped is the number of item-days left out of the snapshots.
func (s *Stats) TotalSkipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.Skips {
		total += n
	}
	return total
}

// SortedReasons returns the recorded skip and warning names in order.
func (s *Stats) SortedReasons() []string {
	counts := s.SkipCounts()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
