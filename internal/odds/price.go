package odds

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	matchTimeRe = regexp.MustCompile(`^(\d{1,3}(\+\d{1,2})?'|HT|FT|KO|\d{1,3}:\d{2})$`)
	lineRe      = regexp.MustCompile(`^[+-]?\d+(\.\d+)?(/[+-]?\d+(\.\d+)?)?$`)
)

// isPlaceholder reports cells that stand for a withdrawn price.
func isPlaceholder(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "-", "--", "—":
		return true
	}
	return false
}

func isMatchTime(s string) bool {
	return matchTimeRe.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

func isLine(s string) bool {
	return lineRe.MatchString(strings.TrimSpace(s))
}

// parsePrice reads one price token. ok is false when the token is neither a
// number nor a placeholder.
func parsePrice(tok string) (price *float64, ok bool) {
	tok = strings.ReplaceAll(strings.TrimSpace(tok), ",", "")
	if isPlaceholder(tok) {
		return nil, true
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || v <= 0 {
		return nil, false
	}
	return &v, true
}

// cellPrice reads a price cell that may carry extra tokens such as a
// movement marker; the right-most odds-like value wins.
func cellPrice(cell string) (price *float64, ok bool) {
	parts := strings.Fields(strings.ReplaceAll(cell, ",", ""))
	if len(parts) == 0 {
		return nil, true
	}
	if len(parts) == 1 {
		return parsePrice(parts[0])
	}
	for i := len(parts) - 1; i >= 0; i-- {
		if v, err := strconv.ParseFloat(parts[i], 64); err == nil && v > 0.5 {
			return &v, true
		}
	}
	return nil, false
}

func strPtr(s string) *string {
	return &s
}
