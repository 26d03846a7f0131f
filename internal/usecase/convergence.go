package usecase

// StopReason says why a collection pass ended.
type StopReason string

const (
	StopNone            StopReason = ""
	StopConverged       StopReason = "converged"
	StopScrollCap       StopReason = "scroll_cap"
	StopError           StopReason = "error"
	StopAlreadyComplete StopReason = "already_complete"
)

// scrollObservation is what one scroll step measured.
type scrollObservation struct {
	HeightBefore float64
	HeightAfter  float64
	// Position is the bottom edge of the viewport after scrolling.
	Position float64
	NewItems int
	// Known is the number of distinct items seen so far, ledger included.
	Known int
}

// convergence decides when infinite scrolling has reached a stable end.
// Its scroll budget spans every attempt of one collection so the absolute
// cap holds even across session restarts.
type convergence struct {
	cfg     CollectorConfig
	scrolls int
	noNew   int
}

func newConvergence(cfg CollectorConfig) *convergence {
	return &convergence{cfg: cfg}
}

// resetPage forgets page-local state after a fresh navigation.
func (c *convergence) resetPage() {
	c.noNew = 0
}

func (c *convergence) patience() int {
	if c.scrolls < c.cfg.PatienceSwitchAt {
		return c.cfg.EarlyPatience
	}
	return c.cfg.LatePatience
}

// exhausted reports whether the absolute cap has been reached.
func (c *convergence) exhausted() bool {
	return c.scrolls >= c.cfg.MaxScrolls
}

// observe records one scroll and reports whether to stop.
func (c *convergence) observe(o scrollObservation) (bool, StopReason) {
	c.scrolls++
	if o.NewItems > 0 {
		c.noNew = 0
	} else {
		c.noNew++
	}

	if c.exhausted() {
		return true, StopScrollCap
	}

	atBottom := o.Position >= o.HeightAfter-float64(c.cfg.BottomTolerance)
	notGrowing := o.HeightAfter <= o.HeightBefore
	if !atBottom || !(notGrowing || c.noNew >= c.patience()) || c.scrolls < c.cfg.MinScrolls {
		return false, StopNone
	}
	// A thin result at the apparent bottom usually means a slow network,
	// so keep scrolling for a while.
	if o.Known < c.cfg.FewItems && c.scrolls < c.cfg.FewItemsMaxScrolls {
		return false, StopNone
	}
	return true, StopConverged
}
