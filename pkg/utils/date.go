package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the compact scrape-date format used in paths and URLs.
const DateLayout = "20060102"

var ErrInvalidDate = errors.New("invalid date")

// NormalizeDate accepts YYYYMMDD or YYYY-MM-DD and returns YYYYMMDD.
func NormalizeDate(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	for _, layout := range []string{DateLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w %q: want YYYYMMDD or YYYY-MM-DD", ErrInvalidDate, raw)
}

// DateRange lists every date from start to end inclusive in YYYYMMDD form.
func DateRange(start, end string) ([]string, error) {
	s, err := NormalizeDate(start)
	if err != nil {
		return nil, err
	}
	e, err := NormalizeDate(end)
	if err != nil {
		return nil, err
	}
	from, _ := time.Parse(DateLayout, s)
	to, _ := time.Parse(DateLayout, e)
	if to.Before(from) {
		return nil, fmt.Errorf("date range end %s is before start %s", e, s)
	}
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}
