package entity

import (
	"fmt"
	"strings"
	"time"
)

// Teams holds the home and away side names of a match.
type Teams struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// Item is one discovered crawl target.
type Item struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Teams           *Teams    `json:"teams,omitempty"`
	SourceDate      string    `json:"sourceDate"`
	DiscoveredAt    time.Time `json:"discoveredAt"`
	Status          Status    `json:"status"`
	Country         string    `json:"country,omitempty"`
	League          string    `json:"league,omitempty"`
	ForbiddenReason string    `json:"forbiddenReason,omitempty"`
}

// CandidateItem is what an extractor reports for one list entry.
type CandidateItem struct {
	ID              string
	URL             string
	Teams           *Teams
	League          string
	Country         string
	ForbiddenReason string
}

// Forbidden reports whether the extractor classified the candidate as out of scope.
func (c CandidateItem) Forbidden() bool {
	return c.ForbiddenReason != ""
}

// ToItem turns a candidate into a ledger item discovered at the given time.
func (c CandidateItem) ToItem(date string, at time.Time) Item {
	status := StatusUnprocessed
	if c.Forbidden() {
		status = StatusForbidden
	}
	return Item{
		ID:              c.ID,
		URL:             c.URL,
		Teams:           c.Teams,
		SourceDate:      date,
		DiscoveredAt:    at.UTC(),
		Status:          status,
		Country:         c.Country,
		League:          c.League,
		ForbiddenReason: c.ForbiddenReason,
	}
}

// Ledger is the per-date list of discovered items and their statuses.
type Ledger struct {
	ScrapeDate  string     `json:"scrapeDate"`
	TotalItems  int        `json:"totalItems"`
	Items       []Item     `json:"items"`
	IsComplete  bool       `json:"isComplete"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewLedger returns an empty ledger for date.
func NewLedger(date string) *Ledger {
	return &Ledger{ScrapeDate: date, Items: []Item{}}
}

// NormalizeID canonicalises an item id for comparisons.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IDs returns the normalised ids of every item.
func (l *Ledger) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(l.Items))
	for _, it := range l.Items {
		ids[NormalizeID(it.ID)] = struct{}{}
	}
	return ids
}

// Find returns the index of the item with the given id, or -1.
func (l *Ledger) Find(id string) int {
	want := NormalizeID(id)
	for i := range l.Items {
		if NormalizeID(l.Items[i].ID) == want {
			return i
		}
	}
	return -1
}

// AddItems appends items whose ids are not yet present and returns how many were added.
func (l *Ledger) AddItems(items []Item) int {
	seen := l.IDs()
	added := 0
	for _, it := range items {
		key := NormalizeID(it.ID)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		l.Items = append(l.Items, it)
		added++
	}
	l.TotalItems = len(l.Items)
	return added
}

// SetStatus moves the item with id to status, enforcing Status.CanTransition.
func (l *Ledger) SetStatus(id string, status Status) error {
	i := l.Find(id)
	if i < 0 {
		return fmt.Errorf("item %q: %w", id, ErrItemNotFound)
	}
	from := l.Items[i].Status
	if !from.CanTransition(status) {
		return &TransitionError{ItemID: id, From: from, To: status}
	}
	l.Items[i].Status = status
	return nil
}

// MarkComplete flags the ledger as fully collected.
func (l *Ledger) MarkComplete(at time.Time) {
	t := at.UTC()
	l.IsComplete = true
	l.CompletedAt = &t
	l.TotalItems = len(l.Items)
}

// StatusCounts tallies items per status.
func (l *Ledger) StatusCounts() map[Status]int {
	counts := make(map[Status]int, len(AllStatuses))
	for _, it := range l.Items {
		counts[it.Status]++
	}
	return counts
}
