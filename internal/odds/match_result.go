package odds

import (
	"strings"

	"github.com/user/odds-crawler/internal/entity"
)

// MatchResultParser reads [bookmaker, home, draw, away] rows. A row with
// only two prices is read as home/away. A row whose price cells are all
// empty is kept as a suspended quote.
type MatchResultParser struct{}

func (MatchResultParser) ParseRow(cells []string) entity.Quote {
	if len(cells) < 3 {
		return nil
	}
	bookmaker := strings.TrimSpace(cells[0])
	if bookmaker == "" {
		bookmaker = "Unknown"
	}

	var prices []*float64
	suspended := true
	for _, c := range cells[1:] {
		if isPlaceholder(c) {
			prices = append(prices, nil)
			continue
		}
		suspended = false
		p, ok := cellPrice(c)
		if !ok {
			return nil
		}
		prices = append(prices, p)
	}

	q := entity.MatchResultQuote{Bookmaker: bookmaker}
	if suspended {
		return q
	}
	switch len(prices) {
	case 2:
		q.Home, q.Away = prices[0], prices[1]
	default:
		q.Home, q.Draw, q.Away = prices[0], prices[1], prices[2]
	}
	if q.Home == nil && q.Draw == nil && q.Away == nil {
		return nil
	}
	return q
}
