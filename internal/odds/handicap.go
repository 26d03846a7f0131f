package odds

import (
	"strings"

	"github.com/user/odds-crawler/internal/entity"
)

// HandicapParser reads in-play Asian handicap rows:
//
//	[time, score, "line price", "line price"]        e.g. ["90+4'", "1-0", "0 5.10", "0 1.17"]
//	[time, score, homeLine, homePrice, awayLine, awayPrice]
//
// Empty side cells yield nil fields rather than dropping the row.
type HandicapParser struct{}

func (HandicapParser) ParseRow(cells []string) entity.Quote {
	if len(cells) < 4 {
		return nil
	}
	q := entity.HandicapQuote{
		Time:          strings.TrimSpace(cells[0]),
		ScoreSnapshot: strings.TrimSpace(cells[1]),
	}
	if q.Time == "" || q.ScoreSnapshot == "" {
		return nil
	}

	var ok bool
	if len(cells) >= 6 {
		if q.HomeLine, q.HomePrice, ok = sideFromCells(cells[2], cells[3]); !ok {
			return nil
		}
		if q.AwayLine, q.AwayPrice, ok = sideFromCells(cells[4], cells[5]); !ok {
			return nil
		}
		return q
	}
	if q.HomeLine, q.HomePrice, ok = splitSide(cells[2]); !ok {
		return nil
	}
	if q.AwayLine, q.AwayPrice, ok = splitSide(cells[3]); !ok {
		return nil
	}
	return q
}

// splitSide reads a combined "line price" cell. Either part may be missing.
func splitSide(cell string) (line *string, price *float64, ok bool) {
	parts := strings.Fields(cell)
	if len(parts) == 0 {
		return nil, nil, true
	}
	if !isPlaceholder(parts[0]) {
		if !isLine(parts[0]) {
			return nil, nil, false
		}
		line = strPtr(parts[0])
	}
	if len(parts) > 1 {
		if price, ok = parsePrice(parts[len(parts)-1]); !ok {
			return nil, nil, false
		}
	}
	return line, price, true
}

func sideFromCells(lineCell, priceCell string) (line *string, price *float64, ok bool) {
	if l := strings.TrimSpace(lineCell); !isPlaceholder(l) {
		if !isLine(l) {
			return nil, nil, false
		}
		line = strPtr(l)
	}
	if price, ok = parsePrice(priceCell); !ok {
		return nil, nil, false
	}
	return line, price, true
}
