// Package marketdata fetches daily price history for a universe of tickers,
// caches it in sqlite, and derives the return statistics the optimizers
// consume.
package marketdata

import "gonum.org/v1/gonum/mat"

// MinHistoryDays is the minimum number of usable daily closes a ticker
// needs before it can contribute to the return statistics.
const MinHistoryDays = 30

// TradingDaysPerYear is the annualization factor for daily statistics.
const TradingDaysPerYear = 252

// Bar is one daily close.
type Bar struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Close float64 `json:"close"`
}

// Series is the daily close history of one symbol.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// DropReason explains why a ticker was excluded from the statistics.
type DropReason string

const (
	// DropInsufficientHistory - fewer than MinHistoryDays usable closes
	DropInsufficientHistory DropReason = "insufficient_history"
	// DropNoData - the provider returned nothing for the symbol
	DropNoData DropReason = "no_data"
)

// DroppedTicker records one exclusion, surfaced in the response so
// callers know the optimization ran over a reduced universe.
type DroppedTicker struct {
	Ticker string     `json:"ticker"`
	Reason DropReason `json:"reason"`
}

// ReturnStatistics is everything the downstream optimizers need: annualized
// mean returns and covariance, Pearson correlation, and the raw daily return
// matrix for backtesting. Tickers lists the survivors in matrix order.
type ReturnStatistics struct {
	Tickers []string
	Mean    []float64     // annualized expected returns
	Cov     *mat.SymDense // annualized covariance
	Corr    [][]float64   // Pearson correlation of daily returns
	Daily   [][]float64   // T x N daily returns, row per trading day
	Dates   []string      // dates of the Daily rows
	Dropped []DroppedTicker
}
