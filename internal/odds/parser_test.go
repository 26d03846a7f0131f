package odds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/odds-crawler/internal/entity"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func TestMatchResultParser(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  entity.Quote
	}{
		{
			name:  "three way",
			cells: []string{"Bet365", "2.10", "3.40", "3.50"},
			want:  entity.MatchResultQuote{Bookmaker: "Bet365", Home: f(2.10), Draw: f(3.40), Away: f(3.50)},
		},
		{
			name:  "two way",
			cells: []string{"Pinnacle", "1.80", "2.05"},
			want:  entity.MatchResultQuote{Bookmaker: "Pinnacle", Home: f(1.80), Away: f(2.05)},
		},
		{
			name:  "movement marker in cell",
			cells: []string{"Bwin", "0 2.20", "3.10", "3.30"},
			want:  entity.MatchResultQuote{Bookmaker: "Bwin", Home: f(2.20), Draw: f(3.10), Away: f(3.30)},
		},
		{
			name:  "suspended",
			cells: []string{"Bet365", "", "-", ""},
			want:  entity.MatchResultQuote{Bookmaker: "Bet365"},
		},
		{
			name:  "missing bookmaker",
			cells: []string{"", "2.0", "3.0", "4.0"},
			want:  entity.MatchResultQuote{Bookmaker: "Unknown", Home: f(2.0), Draw: f(3.0), Away: f(4.0)},
		},
		{name: "too few cells", cells: []string{"Bet365", "2.10"}, want: nil},
		{name: "garbage", cells: []string{"45'", "1-0", "", ""}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchResultParser{}.ParseRow(tt.cells))
		})
	}
}

func TestHandicapParserCombinedCell(t *testing.T) {
	got := HandicapParser{}.ParseRow([]string{"90+4'", "1-0", "0 5.10", "0 1.17"})
	require.NotNil(t, got)
	q := got.(entity.HandicapQuote)
	assert.Equal(t, "90+4'", q.Time)
	assert.Equal(t, "1-0", q.ScoreSnapshot)
	require.NotNil(t, q.HomeLine)
	assert.Equal(t, "0", *q.HomeLine)
	require.NotNil(t, q.HomePrice)
	assert.InDelta(t, 5.10, *q.HomePrice, 1e-9)
	assert.Equal(t, "0", *q.AwayLine)
	assert.InDelta(t, 1.17, *q.AwayPrice, 1e-9)
}

func TestHandicapParserSixCells(t *testing.T) {
	got := HandicapParser{}.ParseRow([]string{"90+10'", "2-2", "-0/0.5", "6.49", "+0/0.5", "1.09"})
	assert.Equal(t, entity.HandicapQuote{
		Time: "90+10'", ScoreSnapshot: "2-2",
		HomeLine: s("-0/0.5"), HomePrice: f(6.49),
		AwayLine: s("+0/0.5"), AwayPrice: f(1.09),
	}, got)
}

func TestHandicapParserTimeFormats(t *testing.T) {
	for _, tm := range []string{"1'", "45'", "45+2'", "90+4'", "HT"} {
		got := HandicapParser{}.ParseRow([]string{tm, "0-0", "0 1.90", "0 1.90"})
		require.NotNil(t, got, tm)
		assert.Equal(t, tm, got.(entity.HandicapQuote).Time)
	}
}

func TestSuspendedRowsKeepTimeAndScore(t *testing.T) {
	cells := []string{"45'", "1-0", "", ""}

	h := HandicapParser{}.ParseRow(cells)
	require.NotNil(t, h, "handicap row must not be dropped")
	assert.Equal(t, entity.HandicapQuote{Time: "45'", ScoreSnapshot: "1-0"}, h)

	tot := TotalParser{Kind: entity.TotalGoals}.ParseRow(cells)
	require.NotNil(t, tot, "total row must not be dropped")
	tq := tot.(entity.TotalQuote)
	assert.Equal(t, "45'", *tq.Time)
	assert.Equal(t, "1-0", *tq.ScoreSnapshot)
	assert.Nil(t, tq.Line)
	assert.Nil(t, tq.OverPrice)
	assert.Nil(t, tq.UnderPrice)
}

func TestHandicapParserRejects(t *testing.T) {
	assert.Nil(t, HandicapParser{}.ParseRow([]string{"45'", "1-0", "0 5.10"}))
	assert.Nil(t, HandicapParser{}.ParseRow([]string{"", "1-0", "0 5.10", "0 1.1"}))
	assert.Nil(t, HandicapParser{}.ParseRow([]string{"45'", "1-0", "abc 5.10", "0 1.1"}))
	assert.Nil(t, HandicapParser{}.ParseRow([]string{"45'", "1-0", "0 x", "0 1.1"}))
}

func TestTotalParserBookmakerRow(t *testing.T) {
	got := TotalParser{Kind: entity.TotalGoals}.ParseRow([]string{"Pinnacle", "2.5", "1.95", "1.85"})
	assert.Equal(t, entity.TotalQuote{
		Bookmaker: "Pinnacle", Line: s("2.5"), OverPrice: f(1.95), UnderPrice: f(1.85), TotalKind: entity.TotalGoals,
	}, got)

	corners := TotalParser{Kind: entity.TotalCorners}.ParseRow([]string{"Bet365", "9.5", "1.90", "1.90"})
	require.NotNil(t, corners)
	assert.Equal(t, entity.TotalCorners, corners.(entity.TotalQuote).TotalKind)
}

func TestTotalParserTimedCombinedCells(t *testing.T) {
	got := TotalParser{Kind: entity.TotalGoals}.ParseRow([]string{"30'", "0-0", "2.5 1.90", "2.5 1.95"})
	require.NotNil(t, got)
	q := got.(entity.TotalQuote)
	assert.Equal(t, "2.5", *q.Line)
	assert.InDelta(t, 1.90, *q.OverPrice, 1e-9)
	assert.InDelta(t, 1.95, *q.UnderPrice, 1e-9)
	assert.Empty(t, q.Bookmaker)
}

func TestTotalParserLines(t *testing.T) {
	for _, line := range []string{"0.5", "2.5", "2.5/3", "10.5"} {
		got := TotalParser{}.ParseRow([]string{"Book", line, "1.9", "1.9"})
		require.NotNil(t, got, line)
		assert.Equal(t, line, *got.(entity.TotalQuote).Line)
	}
	assert.Nil(t, TotalParser{}.ParseRow([]string{"Book", "", ""}))
	assert.Nil(t, TotalParser{}.ParseRow([]string{"Book", "over", "1.9"}))
}

func TestGenericParserSniffsShape(t *testing.T) {
	got := GenericParser{}.ParseRow([]string{"45'", "1-0", "0 1.9", "0 1.9"})
	assert.IsType(t, entity.HandicapQuote{}, got)

	got = GenericParser{}.ParseRow([]string{"Bet365", "1.9", "3.3", "4.0"})
	assert.IsType(t, entity.MatchResultQuote{}, got)
}

func TestTotalParserPriceEqualToLine(t *testing.T) {
	got := TotalParser{Kind: entity.TotalGoals}.ParseRow([]string{"Bet365", "2.5", "2.5", "1.50"})
	require.NotNil(t, got)
	q := got.(entity.TotalQuote)
	assert.Equal(t, "2.5", *q.Line)
	require.NotNil(t, q.OverPrice)
	require.NotNil(t, q.UnderPrice)
	assert.InDelta(t, 2.5, *q.OverPrice, 1e-9)
	assert.InDelta(t, 1.50, *q.UnderPrice, 1e-9)

	timed := TotalParser{Kind: entity.TotalGoals}.ParseRow([]string{"60'", "1-1", "2.5 2.5", "2.5 1.50"})
	require.NotNil(t, timed)
	tq := timed.(entity.TotalQuote)
	assert.InDelta(t, 2.5, *tq.OverPrice, 1e-9)
	assert.InDelta(t, 1.50, *tq.UnderPrice, 1e-9)
}
