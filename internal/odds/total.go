package odds

import (
	"strings"

	"github.com/user/odds-crawler/internal/entity"
)

// TotalParser reads over/under rows for goals or corners. Rows may be
// timed ([time, score, ...]) or per bookmaker ([bookmaker, ...]). The
// first value after the leading columns is the line, the next two
// values are the over and under prices.
type TotalParser struct {
	Kind entity.TotalKind
}

func (p TotalParser) ParseRow(cells []string) entity.Quote {
	if len(cells) < 2 {
		return nil
	}
	q := entity.TotalQuote{TotalKind: p.Kind}
	if q.TotalKind == "" {
		q.TotalKind = entity.TotalGoals
	}

	var rest []string
	timed := len(cells) >= 3 && isMatchTime(cells[0])
	if timed {
		score := strings.TrimSpace(cells[1])
		if score == "" {
			return nil
		}
		q.Time = strPtr(strings.TrimSpace(cells[0]))
		q.ScoreSnapshot = strPtr(score)
		rest = cells[2:]
	} else {
		q.Bookmaker = strings.TrimSpace(cells[0])
		if q.Bookmaker == "" {
			q.Bookmaker = "Unknown"
		}
		rest = cells[1:]
	}

	// Combined cells repeat the line before their price ("2.5 1.90").
	var cellToks [][]string
	for _, c := range rest {
		var toks []string
		for _, f := range strings.Fields(c) {
			if !isPlaceholder(f) {
				toks = append(toks, f)
			}
		}
		if len(toks) > 0 {
			cellToks = append(cellToks, toks)
		}
	}
	if len(cellToks) == 0 {
		if timed {
			return q
		}
		return nil
	}

	line := cellToks[0][0]
	if !isLine(line) {
		return nil
	}
	q.Line = strPtr(line)
	var prices []*float64
	for i, toks := range cellToks {
		if i == 0 || (len(toks) >= 2 && toks[0] == line) {
			toks = toks[1:]
		}
		for _, tok := range toks {
			v, ok := parsePrice(tok)
			if !ok {
				return nil
			}
			prices = append(prices, v)
		}
	}
	if len(prices) > 0 {
		q.OverPrice = prices[0]
	}
	if len(prices) > 1 {
		q.UnderPrice = prices[1]
	}
	if !timed && q.OverPrice == nil && q.UnderPrice == nil {
		return nil
	}
	return q
}
