package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
)

// fakeSession is a scripted browser. Hooks left nil behave like an empty,
// healthy page.
type fakeSession struct {
	id       string
	headless bool

	onNavigate func(url string) error
	onReload   func() error
	onQuery    func(selector string) ([]repository.Element, error)
	onEvaluate func(script string) (any, error)
	onScroll   func(px int) error
	onHTML     func() (string, error)
	title      string
	unhealthy  bool
	restartErr error

	mu          sync.Mutex
	navigations []string
	reloads     int
	restarts    int
	resets      int
}

var _ repository.Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{id: "fake-1", headless: true}
}

func (s *fakeSession) ID() string     { return s.id }
func (s *fakeSession) Headless() bool { return s.headless }

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.navigations = append(s.navigations, url)
	s.mu.Unlock()
	if s.onNavigate != nil {
		return s.onNavigate(url)
	}
	return nil
}

func (s *fakeSession) Reload(context.Context) error {
	s.mu.Lock()
	s.reloads++
	s.mu.Unlock()
	if s.onReload != nil {
		return s.onReload()
	}
	return nil
}

func (s *fakeSession) Evaluate(_ context.Context, script string, out any) error {
	if s.onEvaluate == nil {
		return nil
	}
	v, err := s.onEvaluate(script)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *fakeSession) QueryAll(_ context.Context, selector string) ([]repository.Element, error) {
	if s.onQuery == nil {
		return nil, nil
	}
	return s.onQuery(selector)
}

func (s *fakeSession) ScrollBy(_ context.Context, px int) error {
	if s.onScroll != nil {
		return s.onScroll(px)
	}
	return nil
}

func (s *fakeSession) Title(context.Context) (string, error) { return s.title, nil }

func (s *fakeSession) HTML(context.Context) (string, error) {
	if s.onHTML != nil {
		return s.onHTML()
	}
	return "<html><body></body></html>", nil
}

func (s *fakeSession) IsHealthy(context.Context) bool { return !s.unhealthy }

func (s *fakeSession) Restart(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarts++
	return s.restartErr
}

func (s *fakeSession) ResetState(context.Context) error {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) restartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// fakeElement records which click strategies were tried.
type fakeElement struct {
	text       string
	attrs      map[string]string
	html       string
	clickErr   error
	scriptErr  error
	pointerErr error
	onActivate func()

	tried []string
}

var _ repository.Element = (*fakeElement)(nil)

func (e *fakeElement) Text(context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) OuterHTML(context.Context) (string, error) { return e.html, nil }
func (e *fakeElement) ScrollIntoView(context.Context) error     { return nil }

func (e *fakeElement) click(name string, err error) error {
	e.tried = append(e.tried, name)
	if err == nil && e.onActivate != nil {
		e.onActivate()
	}
	return err
}

func (e *fakeElement) Click(context.Context) error        { return e.click("click", e.clickErr) }
func (e *fakeElement) ScriptClick(context.Context) error  { return e.click("script", e.scriptErr) }
func (e *fakeElement) PointerClick(context.Context) error { return e.click("pointer", e.pointerErr) }

func elements(els ...*fakeElement) []repository.Element {
	out := make([]repository.Element, len(els))
	for i, e := range els {
		out[i] = e
	}
	return out
}

// fakePool lends out a single session.
type fakePool struct {
	s        repository.Session
	err      error
	mu       sync.Mutex
	acquired int
	released int
}

func (p *fakePool) Acquire(context.Context) (repository.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.acquired++
	return p.s, nil
}

func (p *fakePool) Release(context.Context, repository.Session) {
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
}

// listPage simulates an infinitely scrolling list. Every scroll reveals
// perScroll more items until total is reached; a negative total never ends.
type listPage struct {
	mu        sync.Mutex
	total     int
	visible   int
	initial   int
	perScroll int
	scrolled  int
	viewport  int
	rowHeight int
	forbidden map[int]bool
	// liveOnly hides every odd item until the unfiltered tab is chosen.
	liveOnly bool
}

func newListPage(total, initial, perScroll int) *listPage {
	return &listPage{
		total:     total,
		initial:   initial,
		visible:   initial,
		perScroll: perScroll,
		viewport:  800,
		rowHeight: 100,
	}
}

func (p *listPage) height() int {
	return 1000 + p.visible*p.rowHeight
}

func (p *listPage) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = p.initial
	p.scrolled = 0
}

func (p *listPage) scroll(px int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible += p.perScroll
	if p.total >= 0 && p.visible > p.total {
		p.visible = p.total
	}
	p.scrolled = min(p.scrolled+px, p.height()-p.viewport)
	return nil
}

func (p *listPage) evaluate(script string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.Contains(script, "count:") {
		return heightCount{Height: float64(p.height()), Count: p.visible}, nil
	}
	return heightPosition{Height: float64(p.height()), Position: float64(p.scrolled + p.viewport)}, nil
}

func (p *listPage) candidates() []entity.CandidateItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entity.CandidateItem, 0, p.visible)
	for i := 0; i < p.visible; i++ {
		if p.liveOnly && i%2 == 1 {
			continue
		}
		id := itemID(i)
		c := entity.CandidateItem{
			ID:    id,
			URL:   "https://example.com/match-" + id,
			Teams: &entity.Teams{Home: "Home " + id, Away: "Away " + id},
		}
		if p.forbidden[i] {
			c.ForbiddenReason = "women"
		}
		out = append(out, c)
	}
	return out
}

// session wires a fake session to the page.
func (p *listPage) session() *fakeSession {
	s := newFakeSession()
	s.title = "Football fixtures"
	s.onNavigate = func(string) error {
		p.reset()
		return nil
	}
	s.onScroll = p.scroll
	s.onEvaluate = p.evaluate
	return s
}

func itemID(i int) string {
	return fmt.Sprintf("item%04d", i)
}

// pageExtractor reads the list page directly instead of parsing HTML.
type pageExtractor struct {
	page *listPage
	err  error
}

func (e *pageExtractor) Extract(context.Context, string, string, repository.FilterConfig) ([]entity.CandidateItem, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.page.candidates(), nil
}

// memLedgers is an in-memory LedgerRepository with optional failure injection.
type memLedgers struct {
	mu        sync.Mutex
	ledgers   map[string]*entity.Ledger
	appendErr error
	updates   []string
}

func newMemLedgers() *memLedgers {
	return &memLedgers{ledgers: map[string]*entity.Ledger{}}
}

func (r *memLedgers) Load(_ context.Context, date string) (*entity.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[date]
	if !ok {
		return nil, repository.ErrLedgerNotFound
	}
	cp := *l
	cp.Items = append([]entity.Item(nil), l.Items...)
	return &cp, nil
}

func (r *memLedgers) Save(_ context.Context, l *entity.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	cp.Items = append([]entity.Item(nil), l.Items...)
	r.ledgers[l.ScrapeDate] = &cp
	return nil
}

func (r *memLedgers) get(date string) *entity.Ledger {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[date]
	if !ok {
		l = entity.NewLedger(date)
		r.ledgers[date] = l
	}
	return l
}

func (r *memLedgers) AppendItems(_ context.Context, date string, items []entity.Item) (int, error) {
	if r.appendErr != nil {
		return 0, r.appendErr
	}
	l := r.get(date)
	r.mu.Lock()
	defer r.mu.Unlock()
	return l.AddItems(items), nil
}

func (r *memLedgers) MarkComplete(_ context.Context, date string, at time.Time) error {
	l := r.get(date)
	r.mu.Lock()
	defer r.mu.Unlock()
	l.MarkComplete(at)
	return nil
}

func (r *memLedgers) UpdateStatus(_ context.Context, date, itemID string, status entity.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[date]
	if !ok {
		return repository.ErrLedgerNotFound
	}
	r.updates = append(r.updates, itemID+":"+string(status))
	return l.SetStatus(itemID, status)
}

func (r *memLedgers) status(date, itemID string) entity.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.ledgers[date]
	return l.Items[l.Find(itemID)].Status
}

// memRecords is an in-memory DetailRecordRepository.
type memRecords struct {
	mu      sync.Mutex
	records map[string]*entity.DetailRecord
	saveErr error
}

func newMemRecords() *memRecords {
	return &memRecords{records: map[string]*entity.DetailRecord{}}
}

func (r *memRecords) Save(_ context.Context, rec *entity.DetailRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records[rec.SourceDate+"/"+entity.NormalizeID(rec.ItemID)] = &cp
	return nil
}

func (r *memRecords) Load(_ context.Context, date, itemID string) (*entity.DetailRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[date+"/"+entity.NormalizeID(itemID)]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return rec, nil
}

// memFailed is an in-memory FailedItemRepository.
type memFailed struct {
	mu    sync.Mutex
	items map[string]*entity.FailedItem
}

func newMemFailed() *memFailed {
	return &memFailed{items: map[string]*entity.FailedItem{}}
}

func (r *memFailed) SaveOrUpdate(_ context.Context, fi *entity.FailedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *fi
	r.items[fi.SourceDate+"/"+fi.ItemID] = &cp
	return nil
}

func (r *memFailed) FindByDate(_ context.Context, date string, limit int) ([]*entity.FailedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FailedItem
	for _, fi := range r.items {
		if fi.SourceDate == date && len(out) < limit {
			out = append(out, fi)
		}
	}
	return out, nil
}

func (r *memFailed) Delete(_ context.Context, date, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, date+"/"+itemID)
	return nil
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:9222: connection refused")
