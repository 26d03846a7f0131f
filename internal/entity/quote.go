package entity

// QuoteKind tags the variant carried by a Quote.
type QuoteKind string

const (
	QuoteMatchResult QuoteKind = "match_result"
	QuoteHandicap    QuoteKind = "handicap"
	QuoteTotal       QuoteKind = "total"
)

// TotalKind distinguishes goal lines from corner lines.
type TotalKind string

const (
	TotalGoals   TotalKind = "goals"
	TotalCorners TotalKind = "corners"
)

// Quote is one parsed odds row. Price fields are nil when the price was
// withdrawn (a suspended quote).
type Quote interface {
	Kind() QuoteKind
}

// MatchResultQuote is a 1X2 row.
type MatchResultQuote struct {
	Bookmaker string   `json:"bookmaker"`
	Home      *float64 `json:"home"`
	Draw      *float64 `json:"draw"`
	Away      *float64 `json:"away"`
}

func (MatchResultQuote) Kind() QuoteKind { return QuoteMatchResult }

// HandicapQuote is an in-play Asian handicap row.
type HandicapQuote struct {
	Time          string   `json:"time"`
	ScoreSnapshot string   `json:"scoreSnapshot"`
	HomeLine      *string  `json:"homeLine"`
	HomePrice     *float64 `json:"homePrice"`
	AwayLine      *string  `json:"awayLine"`
	AwayPrice     *float64 `json:"awayPrice"`
}

func (HandicapQuote) Kind() QuoteKind { return QuoteHandicap }

// TotalQuote is an over/under row for goals or corners.
type TotalQuote struct {
	Bookmaker     string    `json:"bookmaker,omitempty"`
	Time          *string   `json:"time"`
	ScoreSnapshot *string   `json:"scoreSnapshot"`
	Line          *string   `json:"line"`
	OverPrice     *float64  `json:"overPrice"`
	UnderPrice    *float64  `json:"underPrice"`
	TotalKind     TotalKind `json:"kind"`
}

func (TotalQuote) Kind() QuoteKind { return QuoteTotal }

// Quotes groups parsed rows by variant. Lists are never nil so that empty
// results serialise as [] rather than null.
type Quotes struct {
	MatchResult []MatchResultQuote `json:"matchResult"`
	Handicap    []HandicapQuote    `json:"handicap"`
	Total       []TotalQuote       `json:"total"`
}

// NewQuotes returns Quotes with empty, non-nil lists.
func NewQuotes() Quotes {
	return Quotes{
		MatchResult: []MatchResultQuote{},
		Handicap:    []HandicapQuote{},
		Total:       []TotalQuote{},
	}
}

// Add files q under its variant. Unknown implementations are ignored.
func (q *Quotes) Add(quote Quote) {
	switch v := quote.(type) {
	case MatchResultQuote:
		q.MatchResult = append(q.MatchResult, v)
	case *MatchResultQuote:
		q.MatchResult = append(q.MatchResult, *v)
	case HandicapQuote:
		q.Handicap = append(q.Handicap, v)
	case *HandicapQuote:
		q.Handicap = append(q.Handicap, *v)
	case TotalQuote:
		q.Total = append(q.Total, v)
	case *TotalQuote:
		q.Total = append(q.Total, *v)
	}
}

// Len is the total number of quotes across variants.
func (q Quotes) Len() int {
	return len(q.MatchResult) + len(q.Handicap) + len(q.Total)
}

// QuoteCounts summarises Quotes for the record file.
type QuoteCounts struct {
	MatchResult  int `json:"matchResult"`
	Handicap     int `json:"handicap"`
	TotalGoals   int `json:"totalGoals"`
	TotalCorners int `json:"totalCorners"`
	Total        int `json:"total"`
}

// Counts derives QuoteCounts from q.
func (q Quotes) Counts() QuoteCounts {
	c := QuoteCounts{
		MatchResult: len(q.MatchResult),
		Handicap:    len(q.Handicap),
	}
	for _, t := range q.Total {
		if t.TotalKind == TotalCorners {
			c.TotalCorners++
		} else {
			c.TotalGoals++
		}
	}
	c.Total = q.Len()
	return c
}
