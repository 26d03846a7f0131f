package goquery_extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/user/odds-crawler/internal/entity"
)

const (
	ReasonWomen   = "women's match"
	ReasonYouth   = "youth team"
	ReasonReserve = "reserve team"
)

var (
	womenKeywords = []string{"women", "woman", "ladies", "female", "(w)", "fem", "wfc", "womens"}
	youthKeywords = []string{
		"u18", "u17", "u16", "u15", "u14", "u13", "u12",
		"under 18", "under 17", "under 16", "under 15", "under 14",
		"youth", "junior",
	}
	reserveSuffixes = []string{" b", " c", " ii", " iii"}
	reserveKeywords = []string{"reserve", "second", "2nd", "third", "3rd"}

	ageGroupRe = regexp.MustCompile(`\bu(\d{1,2})\b`)
)

// ForbiddenReason classifies a fixture by its team names and returns the
// reason it is out of scope, or "" when it should be crawled.
func ForbiddenReason(teams *entity.Teams) string {
	if teams == nil {
		return ""
	}
	home := strings.ToLower(strings.TrimSpace(teams.Home))
	away := strings.ToLower(strings.TrimSpace(teams.Away))

	either := func(kw string) bool {
		return strings.Contains(home, kw) || strings.Contains(away, kw)
	}
	for _, kw := range womenKeywords {
		if either(kw) {
			return ReasonWomen
		}
	}
	for _, kw := range youthKeywords {
		if either(kw) {
			return ReasonYouth
		}
	}
	for _, sfx := range reserveSuffixes {
		if strings.HasSuffix(home, sfx) || strings.HasSuffix(away, sfx) {
			return ReasonReserve
		}
	}
	for _, kw := range reserveKeywords {
		if either(kw) {
			return ReasonReserve
		}
	}
	for _, name := range []string{home, away} {
		for _, m := range ageGroupRe.FindAllStringSubmatch(name, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n <= 19 {
				return ReasonYouth
			}
		}
	}
	return ""
}
