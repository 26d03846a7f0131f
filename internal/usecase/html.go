package usecase

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// visibleText returns the document's title and body text without script
// and style contents.
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Find("title").Text() + "\n" + doc.Find("body").Text()
}

// tableRows parses a table's HTML into the trimmed cell texts of each row.
// rowSelectors are tried in order until one matches; rows without cells
// are skipped.
func tableRows(html string, rowSelectors ...string) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var rows *goquery.Selection
	for _, sel := range rowSelectors {
		if rows = doc.Find(sel); rows.Length() > 0 {
			break
		}
	}
	if rows == nil {
		return nil, nil
	}
	var out [][]string
	rows.Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cellText(td))
		})
		if len(cells) > 0 {
			out = append(out, cells)
		}
	})
	return out, nil
}

// cellText joins every text node under sel with single spaces, so that
// "<span>0</span><span>5.10</span>" reads as "0 5.10".
func cellText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				parts = append(parts, c.Text())
				return
			}
			walk(c)
		})
	}
	walk(sel)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
