package marketdata

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientUniverse is returned when fewer than two tickers survive
// the history checks. One asset is not a portfolio.
var ErrInsufficientUniverse = errors.New("fewer than two tickers with sufficient history")

// forwardFillLimit caps how many consecutive missing closes are carried
// forward. Longer gaps stay missing and count against the ticker.
const forwardFillLimit = 5

// ComputeStatistics derives annualized return statistics from raw daily
// close series. Tickers with fewer than minDays usable closes are dropped
// (recorded with a reason, not fatal); the survivors are aligned on the
// trading days where every one of them has a close.
func ComputeStatistics(series []Series, minDays int) (*ReturnStatistics, error) {
	dates := unionDates(series)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no price history at all", ErrInsufficientUniverse)
	}

	// Align each series on the union calendar, forward-filling short gaps.
	var (
		kept    []string
		columns [][]float64
		dropped []DroppedTicker
	)
	for _, s := range series {
		if len(s.Bars) == 0 {
			dropped = append(dropped, DroppedTicker{Ticker: s.Symbol, Reason: DropNoData})
			continue
		}
		col := alignColumn(s, dates)
		if usable(col) < minDays {
			dropped = append(dropped, DroppedTicker{Ticker: s.Symbol, Reason: DropInsufficientHistory})
			continue
		}
		kept = append(kept, s.Symbol)
		columns = append(columns, col)
	}
	if len(kept) < 2 {
		return nil, fmt.Errorf("%w: %d usable of %d requested", ErrInsufficientUniverse, len(kept), len(series))
	}

	// Keep only the days where every survivor has a close.
	var (
		alignedDates  []string
		alignedCloses [][]float64 // row per day
	)
	for d, date := range dates {
		row := make([]float64, len(columns))
		complete := true
		for i, col := range columns {
			if math.IsNaN(col[d]) {
				complete = false
				break
			}
			row[i] = col[d]
		}
		if complete {
			alignedDates = append(alignedDates, date)
			alignedCloses = append(alignedCloses, row)
		}
	}
	if len(alignedDates) < minDays {
		return nil, fmt.Errorf("%w: only %d common trading days", ErrInsufficientUniverse, len(alignedDates))
	}

	n := len(kept)
	days := len(alignedDates) - 1
	daily := make([][]float64, days)
	flat := make([]float64, days*n)
	for t := 0; t < days; t++ {
		row := flat[t*n : (t+1)*n]
		for i := 0; i < n; i++ {
			row[i] = alignedCloses[t+1][i]/alignedCloses[t][i] - 1
		}
		daily[t] = row
	}

	returns := mat.NewDense(days, n, flat)

	mean := make([]float64, n)
	for i := 0; i < n; i++ {
		mean[i] = stat.Mean(mat.Col(nil, i, returns), nil) * TradingDaysPerYear
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, returns, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, cov.At(i, j)*TradingDaysPerYear)
		}
	}

	corrSym := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corrSym, returns, nil)
	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			corr[i][j] = corrSym.At(i, j)
		}
	}

	return &ReturnStatistics{
		Tickers: kept,
		Mean:    mean,
		Cov:     cov,
		Corr:    corr,
		Daily:   daily,
		Dates:   alignedDates[1:],
		Dropped: dropped,
	}, nil
}

// DailyReturns converts a single close series to daily percent returns with
// their dates. Used for the market benchmark.
func DailyReturns(s Series) ([]string, []float64) {
	if len(s.Bars) < 2 {
		return nil, nil
	}
	dates := make([]string, 0, len(s.Bars)-1)
	returns := make([]float64, 0, len(s.Bars)-1)
	for i := 1; i < len(s.Bars); i++ {
		prev := s.Bars[i-1].Close
		if prev <= 0 {
			continue
		}
		dates = append(dates, s.Bars[i].Date)
		returns = append(returns, s.Bars[i].Close/prev-1)
	}
	return dates, returns
}

// AlignReturns maps a dated return series onto a target calendar, filling
// days the series does not cover with zero.
func AlignReturns(targetDates, dates []string, returns []float64) []float64 {
	byDate := make(map[string]float64, len(dates))
	for i, d := range dates {
		byDate[d] = returns[i]
	}
	out := make([]float64, len(targetDates))
	for i, d := range targetDates {
		out[i] = byDate[d] // zero when absent
	}
	return out
}

// unionDates collects every date seen across the series, sorted ascending.
func unionDates(series []Series) []string {
	seen := make(map[string]struct{})
	for _, s := range series {
		for _, b := range s.Bars {
			seen[b.Date] = struct{}{}
		}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// alignColumn places a series on the union calendar, forward-filling gaps up
// to forwardFillLimit consecutive days. Leading days before the first close
// stay NaN.
func alignColumn(s Series, dates []string) []float64 {
	byDate := make(map[string]float64, len(s.Bars))
	for _, b := range s.Bars {
		byDate[b.Date] = b.Close
	}

	col := make([]float64, len(dates))
	last := math.NaN()
	gap := 0
	for i, d := range dates {
		if v, ok := byDate[d]; ok {
			col[i] = v
			last = v
			gap = 0
			continue
		}
		gap++
		if !math.IsNaN(last) && gap <= forwardFillLimit {
			col[i] = last
		} else {
			col[i] = math.NaN()
		}
	}
	return col
}

// usable counts the non-missing entries of an aligned column.
func usable(col []float64) int {
	n := 0
	for _, v := range col {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
