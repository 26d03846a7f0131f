// Package odds parses rows of bookmaker odds tables into quotes.
package odds

import (
	"strings"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
)

// Market is the normalised kind of an odds tab.
type Market int

const (
	MarketUnknown Market = iota
	MarketMatchResult
	MarketHandicap
	MarketTotalGoals
	MarketTotalCorners
)

func (m Market) String() string {
	switch m {
	case MarketMatchResult:
		return "match_result"
	case MarketHandicap:
		return "handicap"
	case MarketTotalGoals:
		return "total_goals"
	case MarketTotalCorners:
		return "total_corners"
	}
	return "unknown"
}

// NormalizeMarket maps a tab label such as "Asian Handicap" or "O/U" onto a Market.
func NormalizeMarket(label string) Market {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return MarketUnknown
	}
	words := strings.FieldsFunc(l, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '(' || r == ')'
	})
	has := func(ws ...string) bool {
		for _, w := range words {
			for _, want := range ws {
				if w == want {
					return true
				}
			}
		}
		return false
	}
	contains := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(l, s) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("corner"):
		return MarketTotalCorners
	case contains("1x2", "1 x 2", "match result", "full time result", "fulltime result", "moneyline") || has("winner"):
		return MarketMatchResult
	case contains("handicap", "asian") || has("ah"):
		return MarketHandicap
	case contains("over/under", "o/u", "total", "goal") || has("ou"):
		return MarketTotalGoals
	}
	return MarketUnknown
}

// Factory hands out the row parser for a tab label. Every Market has an
// explicit entry; MarketUnknown maps to a shape-sniffing parser.
type Factory struct {
	parsers map[Market]repository.OddsRowParser
}

// NewFactory returns a factory with the built-in parsers.
func NewFactory() *Factory {
	return &Factory{parsers: map[Market]repository.OddsRowParser{
		MarketMatchResult:  MatchResultParser{},
		MarketHandicap:     HandicapParser{},
		MarketTotalGoals:   TotalParser{Kind: entity.TotalGoals},
		MarketTotalCorners: TotalParser{Kind: entity.TotalCorners},
		MarketUnknown:      GenericParser{},
	}}
}

// Register replaces the parser used for m.
func (f *Factory) Register(m Market, p repository.OddsRowParser) {
	f.parsers[m] = p
}

// ParserFor implements repository.OddsParserFactory.
func (f *Factory) ParserFor(tabLabel string) repository.OddsRowParser {
	return f.parsers[NormalizeMarket(tabLabel)]
}

// GenericParser handles tabs with unrecognised labels: rows that start with a
// match clock are read as handicap rows, anything else as match-result rows.
type GenericParser struct{}

func (GenericParser) ParseRow(cells []string) entity.Quote {
	if len(cells) > 0 && isMatchTime(cells[0]) {
		return HandicapParser{}.ParseRow(cells)
	}
	return MatchResultParser{}.ParseRow(cells)
}
