package goquery_extractor

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/utils"
)

// Config holds the list-page selectors.
type Config struct {
	ContainerSelector string
	ItemSelector      string
	LeagueSelector    string
	// HeadingSelector reads "Country: League" container headings.
	HeadingSelector string
	HomeSelector    string
	AwaySelector    string
	RequiredPattern string
	MinIDLength     int
}

// DefaultConfig matches the default site's list page.
func DefaultConfig() Config {
	return Config{
		ContainerSelector: ".comp-container",
		ItemSelector:      "a.match-container",
		LeagueSelector:    ".compe-name.minitext",
		HeadingSelector:   ".country-name, .comp-name",
		HomeSelector:      ".team.home, [class*='team-home']",
		AwaySelector:      ".team.away, [class*='team-away']",
		RequiredPattern:   "/match-",
		MinIDLength:       5,
	}
}

const unknown = "Unknown"

var leadingNumberRe = regexp.MustCompile(`^\d+\s+`)

// ExtractorImpl implements repository.Extractor over DOM snapshots.
type ExtractorImpl struct {
	cfg      Config
	splitter SlugSplitter
}

// NewExtractor builds an extractor. A nil splitter disables slug-derived team names.
func NewExtractor(cfg Config, splitter SlugSplitter) *ExtractorImpl {
	return &ExtractorImpl{cfg: cfg, splitter: splitter}
}

// Extract returns every item link on the page that passes filter. Items
// are grouped by their league container; a page without containers is
// read as one container of unknown league.
func (e *ExtractorImpl) Extract(ctx context.Context, pageURL, domSnapshot string, filter repository.FilterConfig) ([]entity.CandidateItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: page url %q: %w", repository.ErrExtraction, pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(domSnapshot))
	if err != nil {
		return nil, fmt.Errorf("%w: parse dom: %w", repository.ErrExtraction, err)
	}

	containers := doc.Find(e.cfg.ContainerSelector)
	if containers.Length() == 0 {
		containers = doc.Selection
	}

	var out []entity.CandidateItem
	seen := map[string]bool{}
	containers.Each(func(_ int, c *goquery.Selection) {
		country, league := e.heading(c)
		if !allowed(filter, country, league) {
			return
		}
		c.Find(e.cfg.ItemSelector).Each(func(_ int, a *goquery.Selection) {
			item, ok := e.candidate(base, a)
			if !ok || seen[entity.NormalizeID(item.ID)] {
				return
			}
			seen[entity.NormalizeID(item.ID)] = true
			if league != unknown {
				item.League = league
			}
			if country != unknown {
				item.Country = country
			}
			out = append(out, item)
		})
	})
	return out, nil
}

// heading reads the country and league of a container.
func (e *ExtractorImpl) heading(c *goquery.Selection) (country, league string) {
	country, league = unknown, unknown
	if name := strings.TrimSpace(c.Find(e.cfg.LeagueSelector).First().Text()); name != "" {
		league = name
	}
	full := strings.TrimSpace(c.Find(e.cfg.HeadingSelector).First().Text())
	if full == "" {
		return country, league
	}
	before, after, found := strings.Cut(full, ":")
	if !found {
		return full, league
	}
	if b := strings.TrimSpace(before); b != "" {
		country = b
	}
	if a := strings.TrimSpace(after); league == unknown && a != "" {
		league = a
	}
	return country, league
}

// allowed applies the league filter when set, otherwise the country filter.
func allowed(f repository.FilterConfig, country, league string) bool {
	switch {
	case len(f.AllowedLeagues) > 0:
		return containsFold(f.AllowedLeagues, league)
	case len(f.AllowedCountries) > 0:
		return containsFold(f.AllowedCountries, country)
	}
	return true
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

func (e *ExtractorImpl) candidate(base *url.URL, a *goquery.Selection) (entity.CandidateItem, bool) {
	href, ok := a.Attr("href")
	if !ok {
		href, ok = a.Find("[href]").First().Attr("href")
	}
	if !ok || !strings.Contains(href, e.cfg.RequiredPattern) {
		return entity.CandidateItem{}, false
	}
	abs, err := utils.ToAbsoluteURL(base, href)
	if err != nil {
		return entity.CandidateItem{}, false
	}
	clean := utils.NormalizeItemURL(abs)
	if !strings.Contains(clean, e.cfg.RequiredPattern) {
		return entity.CandidateItem{}, false
	}
	id := utils.ItemIDFromURL(clean)
	if len(id) < e.cfg.MinIDLength {
		return entity.CandidateItem{}, false
	}

	item := entity.CandidateItem{ID: id, URL: clean, Teams: e.teams(a, clean)}
	item.ForbiddenReason = ForbiddenReason(item.Teams)
	return item, true
}

// teams prefers names rendered in the DOM and falls back to the slug.
func (e *ExtractorImpl) teams(a *goquery.Selection, itemURL string) *entity.Teams {
	home := cleanName(a.Find(e.cfg.HomeSelector).First().Text())
	away := cleanName(a.Find(e.cfg.AwaySelector).First().Text())
	if home == "" || away == "" {
		home = cleanName(a.AttrOr("data-home-team", ""))
		away = cleanName(a.AttrOr("data-away-team", ""))
	}
	if len(home) >= 2 && len(away) >= 2 {
		return &entity.Teams{Home: home, Away: away}
	}
	if e.splitter == nil {
		return nil
	}
	slug := utils.SlugFromURL(itemURL)
	if slug == "" {
		return nil
	}
	t := e.splitter.Split(slug)
	return &t
}

func cleanName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(leadingNumberRe.ReplaceAllString(s, ""))
}
