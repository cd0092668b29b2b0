package analytics

// BacktestPoint is one sampled day of the in-sample replay. Values are
// cumulative compound returns in percent (15.3 means +15.3% from start).
type BacktestPoint struct {
	Date      string  `json:"date"`
	QAOA      float64 `json:"qaoa"`
	Classical float64 `json:"classical"`
	Benchmark float64 `json:"benchmark"`
}

// backtestMaxPoints downsamples the series so charts stay readable.
const backtestMaxPoints = 100

// Backtest applies fixed weights to the historical daily return matrix and
// compounds day by day: C(t) = prod_{k<=t}(1 + w.r_k) - 1.
//
// This is a buy-and-hold, in-sample replay over the same window the
// allocations were fitted on. It measures fit, not forward-looking
// performance. The benchmark series must be aligned to dates beforehand;
// missing benchmark days contribute zero return.
func Backtest(dates []string, daily [][]float64, qaoaWeights, classicalWeights, benchmark []float64) []BacktestPoint {
	t := len(dates)
	if t == 0 || len(daily) != t {
		return nil
	}

	wq := Normalize(qaoaWeights)
	wc := Normalize(classicalWeights)

	cumQ, cumC, cumB := 1.0, 1.0, 1.0
	series := make([]BacktestPoint, t)
	for k := 0; k < t; k++ {
		var rq, rc float64
		for i, r := range daily[k] {
			rq += wq[i] * r
			rc += wc[i] * r
		}
		cumQ *= 1.0 + rq
		cumC *= 1.0 + rc
		if k < len(benchmark) {
			cumB *= 1.0 + benchmark[k]
		}

		series[k] = BacktestPoint{
			Date:      dates[k],
			QAOA:      (cumQ - 1.0) * 100,
			Classical: (cumC - 1.0) * 100,
			Benchmark: (cumB - 1.0) * 100,
		}
	}

	return downsample(series, backtestMaxPoints)
}

// downsample keeps every step-th point so the series stays near the cap.
func downsample(series []BacktestPoint, maxPoints int) []BacktestPoint {
	if len(series) <= maxPoints {
		return series
	}
	step := len(series) / maxPoints
	if step < 1 {
		step = 1
	}
	out := make([]BacktestPoint, 0, maxPoints+1)
	for i := 0; i < len(series); i += step {
		out = append(out, series[i])
	}
	return out
}
