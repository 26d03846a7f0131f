package repository

import (
	"context"

	"github.com/user/odds-crawler/internal/entity"
)

// FilterConfig narrows which list entries an Extractor reports.
type FilterConfig struct {
	AllowedLeagues   []string
	AllowedCountries []string
}

// Extractor turns a list-page DOM snapshot into candidate items.
type Extractor interface {
	Extract(ctx context.Context, pageURL, domSnapshot string, filter FilterConfig) ([]entity.CandidateItem, error)
}

// OddsRowParser turns the cell texts of one table row into a quote, or nil
// when the row is not a quote.
type OddsRowParser interface {
	ParseRow(cells []string) entity.Quote
}

// OddsParserFactory selects the row parser for a tab label.
type OddsParserFactory interface {
	ParserFor(tabLabel string) OddsRowParser
}

// ChallengeSolver tries to clear a CAPTCHA on the session's current page.
type ChallengeSolver interface {
	Solve(ctx context.Context, s Session) bool
}
