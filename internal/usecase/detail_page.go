package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
)

// defaultTabLabel selects the generic parser when no tab group exists.
const defaultTabLabel = "Default"

// FetchItem runs one attempt of the detail state machine for item on s:
// navigate, detect missing content, read metadata, walk the odds tabs and
// aggregate the parsed quotes. A returned error means the attempt itself
// broke down; per-tab problems are reflected in the record's status.
func (uc *DetailFetcher) FetchItem(ctx context.Context, s repository.Session, item entity.Item) (*entity.DetailRecord, error) {
	rec := entity.NewDetailRecord(item, uc.now())
	url := uc.OddsURL(item.URL)

	if err := s.Navigate(ctx, url); err != nil {
		return rec, fetchErr("navigate detail page", err)
	}
	if _, err := uc.resolver.Resolve(ctx, s); err != nil {
		return rec, err
	}

	ok, err := uc.hasContent(ctx, s)
	if err != nil {
		return rec, err
	}
	if !ok {
		// One reload covers pages that rendered an empty shell.
		if err := s.Reload(ctx); err != nil {
			return rec, fetchErr("reload detail page", err)
		}
		if _, err := uc.resolver.Resolve(ctx, s); err != nil {
			return rec, err
		}
		if ok, err = uc.hasContent(ctx, s); err != nil {
			return rec, err
		}
		if !ok {
			rec.Finish(entity.StatusNoDataAvailable, uc.now())
			return rec, nil
		}
	}

	uc.readMetadata(ctx, s, rec)

	if err := uc.extractTabs(ctx, s, rec); err != nil {
		return rec, err
	}

	status := entity.StatusSuccess
	switch {
	case rec.TabsFailed > 0 && rec.Quotes.Len() == 0:
		status = entity.StatusFailed
		rec.Error = fmt.Sprintf("%d of %d tabs failed", rec.TabsFailed, rec.TabsTotal)
	case rec.TabsFailed > 0:
		status = entity.StatusPartial
	}
	rec.Finish(status, uc.now())
	return rec, nil
}

// OddsURL is the odds page of an item.
func (uc *DetailFetcher) OddsURL(itemURL string) string {
	u := strings.TrimRight(itemURL, "/")
	if strings.HasSuffix(u, uc.cfg.OddsSuffix) {
		return u
	}
	return u + uc.cfg.OddsSuffix
}

func (uc *DetailFetcher) hasContent(ctx context.Context, s repository.Session) (bool, error) {
	els, err := s.QueryAll(ctx, uc.cfg.ContentSelector)
	if err != nil {
		return false, fetchErr("query content", err)
	}
	return len(els) > 0, nil
}

// firstText is the trimmed text of the first element matching selector.
func firstText(ctx context.Context, s repository.Session, selector string) string {
	if selector == "" {
		return ""
	}
	els, err := s.QueryAll(ctx, selector)
	if err != nil || len(els) == 0 {
		return ""
	}
	text, err := els[0].Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// readMetadata fills team names, result and league. Everything is optional.
func (uc *DetailFetcher) readMetadata(ctx context.Context, s repository.Session, rec *entity.DetailRecord) {
	if home := firstText(ctx, s, uc.cfg.HomeTeamSelector); home != "" {
		rec.Teams.Home = home
	}
	if away := firstText(ctx, s, uc.cfg.AwayTeamSelector); away != "" {
		rec.Teams.Away = away
	}
	if league := firstText(ctx, s, uc.cfg.LeagueSelector); league != "" {
		rec.League = league
	}
	home, herr := strconv.Atoi(firstText(ctx, s, uc.cfg.HomeScoreSelector))
	away, aerr := strconv.Atoi(firstText(ctx, s, uc.cfg.AwayScoreSelector))
	if herr == nil && aerr == nil {
		rec.Result = fmt.Sprintf("%d-%d", home, away)
	}
}

// extractTabs walks every odds tab. When the tab group never shows up the
// table on the default view is parsed instead.
func (uc *DetailFetcher) extractTabs(ctx context.Context, s repository.Session, rec *entity.DetailRecord) error {
	groups, err := uc.findTabGroup(ctx, s)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		uc.log.Warn("Odds tab group not found, parsing default content", "item_id", rec.ItemID)
		rows, err := uc.waitTable(ctx, s)
		if err != nil {
			if Classify(err) == Transient {
				return err
			}
			uc.log.Debug("No default odds table", "item_id", rec.ItemID, "error", err)
			return nil
		}
		uc.addRows(rec, defaultTabLabel, rows)
		return nil
	}

	if err := uc.activate(ctx, groups[0]); err != nil {
		uc.log.Debug("Tab group click failed", "item_id", rec.ItemID, "error", err)
	}

	tabs, err := s.QueryAll(ctx, uc.cfg.TabSelector)
	if err != nil {
		return fetchErr("query tabs", err)
	}
	rec.TabsTotal = len(tabs)
	for i := 0; i < rec.TabsTotal; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Handles go stale after every re-render.
		tabs, err = s.QueryAll(ctx, uc.cfg.TabSelector)
		if err != nil {
			return fetchErr("query tabs", err)
		}
		if i >= len(tabs) {
			rec.TabsFailed++
			uc.log.Warn("Odds tab disappeared", "item_id", rec.ItemID, "tab", i)
			continue
		}
		label, err := tabs[i].Text(ctx)
		if err != nil && Classify(err) == Transient {
			return fetchErr("read tab label", err)
		}
		label = strings.TrimSpace(label)

		if err := uc.activate(ctx, tabs[i]); err != nil {
			if Classify(err) == Transient {
				return fetchErr("activate tab", err)
			}
			rec.TabsFailed++
			uc.log.Warn("Odds tab could not be activated", "item_id", rec.ItemID, "tab", label, "error", err)
			continue
		}
		rows, err := uc.waitTable(ctx, s)
		if err != nil {
			if Classify(err) == Transient {
				return err
			}
			rec.TabsFailed++
			uc.log.Warn("Odds table missing", "item_id", rec.ItemID, "tab", label, "error", err)
			continue
		}
		uc.addRows(rec, label, rows)
	}
	return nil
}

// findTabGroup looks for the tab group, reloading between attempts.
func (uc *DetailFetcher) findTabGroup(ctx context.Context, s repository.Session) ([]repository.Element, error) {
	attempts := max(uc.cfg.TabGroupAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		groups, err := s.QueryAll(ctx, uc.cfg.TabGroupSelector)
		if err != nil {
			return nil, fetchErr("query tab group", err)
		}
		if len(groups) > 0 {
			return groups, nil
		}
		if attempt == attempts {
			break
		}
		if err := s.Reload(ctx); err != nil {
			return nil, fetchErr("reload for tab group", err)
		}
		if err := sleepCtx(ctx, uc.cfg.ReloadSettle); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// activate clicks a tab and waits for it to settle.
func (uc *DetailFetcher) activate(ctx context.Context, el repository.Element) error {
	return activateElement(ctx, el, uc.cfg.TabSettle)
}

// activateElement tries the click strategies in order until one works,
// then waits settle.
func activateElement(ctx context.Context, el repository.Element, settle time.Duration) error {
	_ = el.ScrollIntoView(ctx)
	strategies := []struct {
		name  string
		click func(context.Context) error
	}{
		{"click", el.Click},
		{"script", el.ScriptClick},
		{"pointer", el.PointerClick},
	}
	var errs []error
	for _, st := range strategies {
		err := st.click(ctx)
		if err == nil {
			return sleepCtx(ctx, settle)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
	}
	return fmt.Errorf("%w: all click strategies failed: %w", repository.ErrExtraction, errors.Join(errs...))
}

// waitTable polls for the odds table and returns its parsed rows.
func (uc *DetailFetcher) waitTable(ctx context.Context, s repository.Session) ([][]string, error) {
	polls := max(uc.cfg.TableWaitPolls, 1)
	for i := 0; i < polls; i++ {
		tables, err := s.QueryAll(ctx, uc.cfg.TableSelector)
		if err != nil {
			return nil, fetchErr("query odds table", err)
		}
		if len(tables) > 0 {
			if err := uc.scrollTableBody(ctx, s); err != nil {
				return nil, err
			}
			html, err := tables[0].OuterHTML(ctx)
			if err != nil {
				return nil, fetchErr("read odds table", err)
			}
			rows, err := tableRows(html, uc.cfg.RowSelectors...)
			if err != nil {
				return nil, fmt.Errorf("%w: parse odds table: %w", repository.ErrExtraction, err)
			}
			return rows, nil
		}
		if err := sleepCtx(ctx, uc.cfg.TableWaitInterval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: odds table did not render", repository.ErrExtraction)
}

// tableBody is what the table body scripts report.
type tableBody struct {
	Capped bool    `json:"capped"`
	Height float64 `json:"height"`
	Rows   int     `json:"rows"`
}

// tableBodyScript measures the table body, scrolling it to its end first
// when scroll is set. Bodies without a max-height cap report capped=false.
func tableBodyScript(selector string, scroll bool) string {
	step := ""
	if scroll {
		step = "b.scrollTop = b.scrollHeight;"
	}
	return fmt.Sprintf(`(() => {
	const b = document.querySelector(%s);
	if (!b || !(b.getAttribute("style") || "").includes("max-height")) return {capped: false};
	%s
	return {capped: true, height: b.scrollHeight, rows: b.querySelectorAll("tr").length};
})()`, strconv.Quote(selector), step)
}

// scrollTableBody scrolls a height-capped table body until its height
// stops growing, so lazily rendered rows exist before the table is read.
// Script failures leave the table as rendered; only ctx errors escape.
func (uc *DetailFetcher) scrollTableBody(ctx context.Context, s repository.Session) error {
	if uc.cfg.TableBodySelector == "" || uc.cfg.TableScrollMax <= 0 {
		return nil
	}
	selector := uc.cfg.TableSelector + " " + uc.cfg.TableBodySelector
	measure := tableBodyScript(selector, false)
	scroll := tableBodyScript(selector, true)

	var last tableBody
	if err := s.Evaluate(ctx, measure, &last); err != nil || !last.Capped {
		return ctx.Err()
	}
	for i := 0; i < uc.cfg.TableScrollMax; i++ {
		var cur tableBody
		if err := s.Evaluate(ctx, scroll, &cur); err != nil {
			uc.log.Debug("Table body scroll failed", "error", err)
			return ctx.Err()
		}
		for p := 0; p < uc.cfg.TableScrollPolls && cur.Rows <= last.Rows; p++ {
			if err := sleepCtx(ctx, uc.cfg.TableScrollInterval); err != nil {
				return err
			}
			if err := s.Evaluate(ctx, measure, &cur); err != nil {
				return ctx.Err()
			}
		}
		if cur.Height == last.Height {
			return nil
		}
		last = cur
	}
	return nil
}

// addRows parses rows with the parser for label. Rows the parser rejects
// are dropped.
func (uc *DetailFetcher) addRows(rec *entity.DetailRecord, label string, rows [][]string) {
	parser := uc.parsers.ParserFor(label)
	for _, cells := range rows {
		if q := parser.ParseRow(cells); q != nil {
			rec.Quotes.Add(q)
		}
	}
}
