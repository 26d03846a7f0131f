package goquery_extractor

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/user/odds-crawler/internal/entity"
)

// SlugSplitter guesses team names from a URL slug such as
// "chelmsford-city-hornchurch". Any implementation is lossy: a slug does
// not say where one club name ends and the next begins.
type SlugSplitter interface {
	Split(slug string) entity.Teams
}

var (
	vsTokens = map[string]bool{"vs": true, "v": true, "versus": true}

	// teamSuffixes usually close the name before them.
	teamSuffixes = map[string]bool{
		"rs": true, "pr": true, "sp": true, "rj": true, "mg": true,
		"sc": true, "fc": true, "cf": true, "ac": true, "ca": true,
		"united": true, "city": true, "town": true, "club": true, "sporting": true,
		"u21": true, "u19": true, "u17": true, "women": true, "w": true,
		"youth": true, "boldklub": true,
	}
	// teamPrefixes usually open a new name.
	teamPrefixes = map[string]bool{
		"club": true, "atletico": true, "sc": true, "fc": true, "cf": true,
		"ca": true, "ac": true, "sporting": true, "defensores": true,
		"gimnasia": true, "estudiantes": true, "racing": true, "river": true,
	}
	articles   = map[string]bool{"the": true, "los": true, "las": true, "el": true, "la": true}
	connectors = map[string]bool{"de": true, "del": true, "y": true, "and": true, "e": true}
	continuers = map[string]bool{"de": true, "del": true, "la": true, "los": true, "las": true}

	abbreviations = map[string]string{
		"cr": "CR", "rs": "RS", "pr": "PR", "sp": "SP", "rj": "RJ", "mg": "MG",
		"sc": "SC", "fc": "FC", "cf": "CF", "ac": "AC", "ca": "CA",
		"u21": "U21", "u19": "U19", "u17": "U17",
	}
)

// HeuristicSplitter is the default SlugSplitter.
type HeuristicSplitter struct{}

func (HeuristicSplitter) Split(slug string) entity.Teams {
	words := strings.FieldsFunc(strings.ToLower(slug), func(r rune) bool { return r == '-' })
	if len(words) == 0 {
		return entity.Teams{}
	}
	for i, w := range words {
		if vsTokens[w] && i > 0 {
			return teams(words[:i], words[i+1:])
		}
	}
	at := splitPoint(words)
	if at <= 0 || at >= len(words) {
		return entity.Teams{Home: titleName(words), Away: "Unknown"}
	}
	return teams(words[:at], words[at:])
}

// splitPoint returns the index of the first word of the away team.
func splitPoint(w []string) int {
	switch n := len(w); {
	case n == 1:
		return 0
	case n == 2:
		return 1
	case n == 3:
		switch {
		case teamSuffixes[w[1]]:
			return 2
		case teamSuffixes[w[2]]:
			return 1
		case len(w[0]) <= 3 && !articles[w[0]]:
			return 2
		case connectors[w[1]]:
			return 2
		}
		return 1
	case n == 4:
		switch {
		case teamSuffixes[w[1]]:
			return 2
		case teamSuffixes[w[3]]:
			return 1
		}
		return 2
	default:
		mid := n / 2
		for i := 2; i < n-1; i++ {
			if teamPrefixes[w[i]] {
				return i
			}
		}
		for i := 2; i < n-1; i++ {
			if continuers[w[i]] {
				continue
			}
			if i > mid && !continuers[w[i-1]] {
				return i
			}
		}
		return mid
	}
}

func teams(home, away []string) entity.Teams {
	return entity.Teams{Home: titleName(home), Away: titleName(away)}
}

func titleName(words []string) string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if abbr, ok := abbreviations[w]; ok {
			out = append(out, abbr)
			continue
		}
		out = append(out, strings.ToUpper(w[:1])+w[1:])
	}
	return strings.Join(out, " ")
}

// CachedSplitter memoises another splitter.
type CachedSplitter struct {
	next  SlugSplitter
	cache *lru.Cache[string, entity.Teams]
}

// NewCachedSplitter wraps next with an LRU of the given size.
func NewCachedSplitter(next SlugSplitter, size int) (*CachedSplitter, error) {
	cache, err := lru.New[string, entity.Teams](size)
	if err != nil {
		return nil, err
	}
	return &CachedSplitter{next: next, cache: cache}, nil
}

func (c *CachedSplitter) Split(slug string) entity.Teams {
	if t, ok := c.cache.Get(slug); ok {
		return t
	}
	t := c.next.Split(slug)
	c.cache.Add(slug, t)
	return t
}
