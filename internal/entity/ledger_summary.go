package entity

import "time"

// LedgerSummary is the reporting view of one date's ledger.
type LedgerSummary struct {
	Date        string         `json:"date"`
	TotalItems  int            `json:"totalItems"`
	IsComplete  bool           `json:"isComplete"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Counts      map[Status]int `json:"counts"`
	Done        int            `json:"done"`
	Remaining   int            `json:"remaining"`
}

// Summary derives a LedgerSummary with a count for every status.
func (l *Ledger) Summary() LedgerSummary {
	counts := l.StatusCounts()
	for _, s := range AllStatuses {
		if _, ok := counts[s]; !ok {
			counts[s] = 0
		}
	}
	sum := LedgerSummary{
		Date:        l.ScrapeDate,
		TotalItems:  len(l.Items),
		IsComplete:  l.IsComplete,
		CompletedAt: l.CompletedAt,
		Counts:      counts,
	}
	for s, n := range counts {
		if s.IsDone() {
			sum.Done += n
		}
	}
	sum.Remaining = sum.TotalItems - sum.Done
	return sum
}

// Finished reports whether the ledger is complete with nothing left to fetch.
func (s LedgerSummary) Finished() bool {
	return s.IsComplete && s.Remaining == 0
}
