package chatlog

import (
	"sort"
	"time"

	"github.com/comigor/mindly-go/internal/intent"
)

// Stats summarises a log for the admin view.
type Stats struct {
	Total    int                  `json:"total" yaml:"total"`
	Last     time.Time            `json:"last,omitempty" yaml:"last,omitempty"`
	ByIntent map[intent.Label]int `json:"by_intent" yaml:"by_intent"`
}

// IntentCount is one row of the per-intent breakdown.
type IntentCount struct {
	Label intent.Label
	Count int
}

// Summarize counts entries per intent and finds the latest timestamp.
func Summarize(entries []Entry) Stats {
	s := Stats{Total: len(entries), ByIntent: make(map[intent.Label]int)}
	for _, e := range entries {
		s.ByIntent[e.Intent]++
		if e.Timestamp.After(s.Last) {
			s.Last = e.Timestamp.Time
		}
	}
	return s
}

// Breakdown returns the per-intent counts, most frequent first.
func (s Stats) Breakdown() []IntentCount {
	out := make([]IntentCount, 0, len(s.ByIntent))
	for l, c := range s.ByIntent {
		out = append(out, IntentCount{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
