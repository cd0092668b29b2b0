package marketdata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticSeries builds days of closes growing at a constant daily rate.
func syntheticSeries(symbol string, days int, start, dailyGrowth float64) Series {
	s := Series{Symbol: symbol}
	price := start
	for i := 0; i < days; i++ {
		s.Bars = append(s.Bars, Bar{
			Date:  fmt.Sprintf("2024-%02d-%02d", 1+i/28, 1+i%28),
			Close: price,
		})
		price *= 1 + dailyGrowth
	}
	return s
}

func TestComputeStatistics(t *testing.T) {
	a := syntheticSeries("AAPL", 60, 100, 0.001)
	b := syntheticSeries("MSFT", 60, 200, 0.002)

	stats, err := ComputeStatistics([]Series{a, b}, MinHistoryDays)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, stats.Tickers)
	assert.Empty(t, stats.Dropped)
	assert.Len(t, stats.Daily, 59)
	assert.Len(t, stats.Dates, 59)

	// Constant growth rates annualize to rate*252.
	assert.InDelta(t, 0.001*252, stats.Mean[0], 1e-9)
	assert.InDelta(t, 0.002*252, stats.Mean[1], 1e-9)

	// Constant returns have no variance.
	assert.InDelta(t, 0.0, stats.Cov.At(0, 0), 1e-12)

	require.Len(t, stats.Corr, 2)
	assert.Len(t, stats.Corr[0], 2)
}

func TestComputeStatisticsCorrelationDiagonal(t *testing.T) {
	a := syntheticSeries("A", 60, 100, 0.001)
	b := syntheticSeries("B", 60, 100, 0.001)
	// Perturb so returns are not constant
	a.Bars[10].Close *= 1.05
	b.Bars[20].Close *= 0.95

	stats, err := ComputeStatistics([]Series{a, b}, MinHistoryDays)
	require.NoError(t, err)

	for i := range stats.Corr {
		assert.InDelta(t, 1.0, stats.Corr[i][i], 1e-9)
		for j := range stats.Corr[i] {
			assert.InDelta(t, stats.Corr[j][i], stats.Corr[i][j], 1e-9)
			assert.LessOrEqual(t, stats.Corr[i][j], 1.0+1e-9)
			assert.GreaterOrEqual(t, stats.Corr[i][j], -1.0-1e-9)
		}
	}
}

func TestComputeStatisticsDrops(t *testing.T) {
	t.Run("short history dropped with reason", func(t *testing.T) {
		long1 := syntheticSeries("AAA", 60, 100, 0.001)
		long2 := syntheticSeries("BBB", 60, 100, 0.002)
		short := syntheticSeries("CCC", 10, 100, 0.001)

		stats, err := ComputeStatistics([]Series{long1, short, long2}, MinHistoryDays)
		require.NoError(t, err)

		assert.Equal(t, []string{"AAA", "BBB"}, stats.Tickers)
		require.Len(t, stats.Dropped, 1)
		assert.Equal(t, "CCC", stats.Dropped[0].Ticker)
		assert.Equal(t, DropInsufficientHistory, stats.Dropped[0].Reason)
	})

	t.Run("empty series dropped as no data", func(t *testing.T) {
		long1 := syntheticSeries("AAA", 60, 100, 0.001)
		long2 := syntheticSeries("BBB", 60, 100, 0.002)
		empty := Series{Symbol: "GONE"}

		stats, err := ComputeStatistics([]Series{long1, empty, long2}, MinHistoryDays)
		require.NoError(t, err)
		require.Len(t, stats.Dropped, 1)
		assert.Equal(t, DropNoData, stats.Dropped[0].Reason)
	})

	t.Run("fewer than two survivors fails", func(t *testing.T) {
		long1 := syntheticSeries("AAA", 60, 100, 0.001)
		short := syntheticSeries("BBB", 5, 100, 0.001)

		_, err := ComputeStatistics([]Series{long1, short}, MinHistoryDays)
		assert.ErrorIs(t, err, ErrInsufficientUniverse)
	})

	t.Run("no history at all fails", func(t *testing.T) {
		_, err := ComputeStatistics([]Series{{Symbol: "A"}, {Symbol: "B"}}, MinHistoryDays)
		assert.ErrorIs(t, err, ErrInsufficientUniverse)
	})
}

func TestForwardFill(t *testing.T) {
	a := syntheticSeries("AAA", 60, 100, 0.001)
	b := syntheticSeries("BBB", 60, 100, 0.002)
	// Knock 3 days out of the middle of b: within the fill limit, so the
	// ticker survives with its last close carried forward.
	b.Bars = append(b.Bars[:30], b.Bars[33:]...)

	stats, err := ComputeStatistics([]Series{a, b}, MinHistoryDays)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, stats.Tickers)
	// The union calendar still has all 60 days; every one is complete.
	assert.Len(t, stats.Daily, 59)
}

func TestDailyReturns(t *testing.T) {
	s := Series{Symbol: "X", Bars: []Bar{
		{Date: "2024-01-02", Close: 100},
		{Date: "2024-01-03", Close: 110},
		{Date: "2024-01-04", Close: 99},
	}}
	dates, returns := DailyReturns(s)
	require.Len(t, returns, 2)
	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, dates)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)

	dates, returns = DailyReturns(Series{Symbol: "Y"})
	assert.Nil(t, dates)
	assert.Nil(t, returns)
}

func TestAlignReturns(t *testing.T) {
	target := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	aligned := AlignReturns(target, []string{"2024-01-03"}, []float64{0.02})
	assert.Equal(t, []float64{0, 0.02, 0}, aligned)
}
