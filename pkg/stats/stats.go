// Package stats keeps per-class detection tallies. Tables preserve insertion
// order (first-seen class first); the order carries no meaning beyond display.
package stats

import (
	"gonum.org/v1/gonum/stat"
)

type Table struct {
	names  []string
	counts map[string]int
	scores map[string][]float64
}

type Entry struct {
	Name           string  `json:"name"`
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
}

func New() *Table {
	return &Table{
		counts: make(map[string]int),
		scores: make(map[string][]float64),
	}
}

// Add records one detection of the named class with its confidence score
func (t *Table) Add(name string, score float64) {
	if _, seen := t.counts[name]; !seen {
		t.names = append(t.names, name)
	}
	t.counts[name]++
	t.scores[name] = append(t.scores[name], score)
}

// Merge adds other's tallies element-wise; classes absent from t are
// initialized with other's counts
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for _, name := range other.names {
		if _, seen := t.counts[name]; !seen {
			t.names = append(t.names, name)
		}
		t.counts[name] += other.counts[name]
		t.scores[name] = append(t.scores[name], other.scores[name]...)
	}
}

func (t *Table) Count(name string) int { return t.counts[name] }

func (t *Table) Names() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

func (t *Table) Total() int {
	total := 0
	for _, c := range t.counts {
		total += c
	}
	return total
}

func (t *Table) Len() int { return len(t.names) }

func (t *Table) Empty() bool { return t == nil || len(t.names) == 0 }

// MeanConfidence is the average score of all detections of the named class,
// 0 when the class was never seen
func (t *Table) MeanConfidence(name string) float64 {
	scores := t.scores[name]
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}

func (t *Table) Counts() map[string]int {
	counts := make(map[string]int, len(t.counts))
	for name, c := range t.counts {
		counts[name] = c
	}
	return counts
}

func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.names))
	for _, name := range t.names {
		entries = append(entries, Entry{
			Name:           name,
			Count:          t.counts[name],
			MeanConfidence: t.MeanConfidence(name),
		})
	}
	return entries
}

// Rows lays entries out for display, width entries per row
func (t *Table) Rows(width int) [][]Entry {
	if width < 1 {
		width = 1
	}
	entries := t.Entries()
	var rows [][]Entry
	for len(entries) > 0 {
		n := min(width, len(entries))
		rows = append(rows, entries[:n])
		entries = entries[n:]
	}
	return rows
}
