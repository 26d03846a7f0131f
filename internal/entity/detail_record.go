package entity

import "time"

// DetailRecord is the outcome of one detail fetch, persisted whatever the status.
type DetailRecord struct {
	ItemID          string      `json:"itemId"`
	URL             string      `json:"url"`
	SourceDate      string      `json:"sourceDate"`
	ScrapeTimestamp time.Time   `json:"scrapeTimestamp"`
	WindowStart     time.Time   `json:"windowStart"`
	WindowEnd       time.Time   `json:"windowEnd"`
	Status          Status      `json:"status"`
	DurationSeconds float64     `json:"durationSeconds"`
	Teams           Teams       `json:"teams"`
	Result          string      `json:"result,omitempty"`
	League          string      `json:"league,omitempty"`
	Quotes          Quotes      `json:"quotes"`
	QuoteCounts     QuoteCounts `json:"quoteCounts"`
	TabsTotal       int         `json:"tabsTotal"`
	TabsFailed      int         `json:"tabsFailed"`
	Error           string      `json:"error,omitempty"`
}

// NewDetailRecord starts a record for item at the given time.
func NewDetailRecord(item Item, start time.Time) *DetailRecord {
	rec := &DetailRecord{
		ItemID:      item.ID,
		URL:         item.URL,
		SourceDate:  item.SourceDate,
		WindowStart: start.UTC(),
		Status:      StatusPending,
		League:      item.League,
		Quotes:      NewQuotes(),
	}
	if item.Teams != nil {
		rec.Teams = *item.Teams
	}
	return rec
}

// Finish stamps the end of the fetch window and derives the summary fields.
func (r *DetailRecord) Finish(status Status, end time.Time) {
	r.Status = status
	r.WindowEnd = end.UTC()
	r.ScrapeTimestamp = r.WindowEnd
	r.DurationSeconds = r.WindowEnd.Sub(r.WindowStart).Seconds()
	r.QuoteCounts = r.Quotes.Counts()
}
