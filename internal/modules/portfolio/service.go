package portfolio

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/quantfolio/internal/events"
	"github.com/aristath/quantfolio/internal/modules/analytics"
	"github.com/aristath/quantfolio/internal/modules/marketdata"
	"github.com/aristath/quantfolio/internal/modules/markowitz"
	"github.com/aristath/quantfolio/internal/modules/qaoa"
	"github.com/aristath/quantfolio/internal/modules/qubo"
)

// Benchmark fallback metrics, used when the benchmark download fails.
// Long-run US large-cap figures; stale but serviceable for a comparison row.
const (
	benchmarkFallbackReturn = 0.10
	benchmarkFallbackVol    = 0.17
)

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// ServiceConfig carries the tunables the pipeline needs.
type ServiceConfig struct {
	BenchmarkSymbol   string
	HistoryWindowDays int
	RequestTimeout    time.Duration
	CircuitDepth      int
	ShotBudget        int
}

// Service runs the full optimization pipeline for one request.
type Service struct {
	data      *marketdata.Client
	selector  *qaoa.Selector
	quantum   *qaoa.Optimizer
	classical *markowitz.Optimizer
	bus       *events.Bus
	cfg       ServiceConfig
	log       zerolog.Logger
}

// NewService wires the pipeline together. bus may be nil when no one
// consumes phase events.
func NewService(
	data *marketdata.Client,
	selector *qaoa.Selector,
	bus *events.Bus,
	cfg ServiceConfig,
	log zerolog.Logger,
) *Service {
	return &Service{
		data:      data,
		selector:  selector,
		quantum:   qaoa.NewOptimizer(log),
		classical: markowitz.New(log),
		bus:       bus,
		cfg:       cfg,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// Optimize runs the pipeline end to end: history, statistics, backend
// selection, the two optimizers concurrently, then assembly. Failures come
// back as *Error with a stable kind; timeout and evaluator failures carry
// the partial convergence trace.
func (s *Service) Optimize(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	tickers, nerr := normalizeTickers(req.Tickers)
	if nerr != nil {
		return nil, nerr
	}
	if req.RiskTolerance < 0 || req.RiskTolerance > 1 {
		return nil, newError(KindInvalidInput,
			fmt.Sprintf("risk_tolerance must be in [0,1], got %g", req.RiskTolerance), nil)
	}
	if req.MinAssets < 0 || req.MaxAssets < 0 {
		return nil, newError(KindInvalidInput, "cardinality bounds must be non-negative", nil)
	}
	if req.MaxAssets > 0 && req.MinAssets > req.MaxAssets {
		return nil, newError(KindInvalidInput,
			fmt.Sprintf("min_assets %d exceeds max_assets %d", req.MinAssets, req.MaxAssets), nil)
	}

	seed := req.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	runID := uuid.New().String()
	log := s.log.With().Str("run_id", runID).Logger()
	log.Info().Strs("tickers", tickers).Float64("lambda", req.RiskTolerance).Msg("Optimization started")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	// Phase 1: history and statistics.
	stats, err := s.data.Statistics(ctx, tickers, s.cfg.HistoryWindowDays)
	if err != nil {
		return nil, classifyDataError(err)
	}
	s.publish(runID, &events.DataReadyData{
		Tickers: stats.Tickers,
		Dropped: droppedNames(stats.Dropped),
		Days:    len(stats.Dates),
	})

	// Phase 2: backend selection, decided once.
	choice := s.selector.Select(ctx, qaoa.SelectionInput{
		Assets:          len(stats.Tickers),
		Credential:      req.Credential,
		PreferSimulator: req.PreferSimulator,
		Seed:            seed,
	})
	s.publish(runID, &events.BackendSelectedData{
		Backend:  choice.Backend,
		Fallback: choice.Fallback,
		Reason:   choice.Reason,
	})

	// Phase 3: both optimizers, no data dependency between them.
	var (
		qres       *qaoa.Result
		bits       []int
		degenerate bool
		cres       *markowitz.Result
	)
	var card *qubo.Cardinality
	if req.MinAssets > 0 || req.MaxAssets > 0 {
		card = &qubo.Cardinality{Min: req.MinAssets, Max: req.MaxAssets}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if closer, ok := choice.Evaluator.(qaoa.SessionCloser); ok {
			// Hardware runs hold a runtime session; release it when the
			// run is over instead of waiting for server-side expiry.
			defer closer.Close(ctx)
		}
		q, err := qubo.Build(stats.Mean, stats.Cov, req.RiskTolerance, card)
		if err != nil {
			return newError(KindInternal, "QUBO construction failed", err)
		}
		ham := qubo.ToIsing(q)
		qres, err = s.quantum.Optimize(gctx, ham, choice, qaoa.OptimizeConfig{
			Depth:      s.cfg.CircuitDepth,
			ShotBudget: s.cfg.ShotBudget,
			Seed:       seed,
		})
		if err != nil {
			return classifyQuantumError(err, qres)
		}
		bits, _, degenerate = qaoa.DecodeAllocation(qres.Distribution, q)
		if degenerate {
			// Empty portfolio decoded: substitute the single best-return
			// asset, flagged so callers can tell.
			bits = make([]int, len(stats.Mean))
			bits[argmax(stats.Mean)] = 1
			log.Warn().Msg("Degenerate decode, substituting highest-return asset")
		}
		s.publish(runID, &events.QuantumDoneData{
			Selected:   countOnes(bits),
			Iterations: qres.Evaluations,
			Degenerate: degenerate,
		})
		return nil
	})
	g.Go(func() error {
		var err error
		cres, err = s.classical.Optimize(stats.Mean, stats.Cov, req.RiskTolerance, seed)
		if err != nil {
			return newError(KindInternal, "classical optimization failed", err)
		}
		s.publish(runID, &events.ClassicalDoneData{Objective: cres.Objective})
		return nil
	})
	if err := g.Wait(); err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, newError(KindInternal, "pipeline failed", err)
	}

	// Phase 4: assembly.
	resp := s.assemble(ctx, runID, stats, req.RiskTolerance, seed, choice, qres, bits, degenerate, cres)
	resp.ElapsedMs = time.Since(started).Milliseconds()
	s.publish(runID, &events.ResultAssembledData{Elapsed: time.Since(started)})
	log.Info().Int64("elapsed_ms", resp.ElapsedMs).Str("backend", choice.Backend).Msg("Optimization complete")
	return resp, nil
}

// ValidateTickers pre-checks symbols without running the pipeline: format
// first, then a lightweight history probe for the well-formed ones.
func (s *Service) ValidateTickers(ctx context.Context, tickers []string) (*ValidationResult, error) {
	res := &ValidationResult{Valid: []string{}, Invalid: []string{}}
	seen := make(map[string]struct{})
	var wellFormed []string
	for _, raw := range tickers {
		t := strings.ToUpper(strings.TrimSpace(raw))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if !tickerPattern.MatchString(t) {
			res.Invalid = append(res.Invalid, t)
			continue
		}
		wellFormed = append(wellFormed, t)
	}

	if len(wellFormed) == 0 {
		return res, nil
	}

	series, err := s.data.FetchDaily(ctx, wellFormed, s.cfg.HistoryWindowDays)
	if err != nil {
		return nil, newError(KindInternal, "history probe failed", err)
	}
	for _, t := range wellFormed {
		if len(series[t].Bars) >= marketdata.MinHistoryDays {
			res.Valid = append(res.Valid, t)
		} else {
			res.Invalid = append(res.Invalid, t)
		}
	}
	return res, nil
}

func (s *Service) assemble(
	ctx context.Context,
	runID string,
	stats *marketdata.ReturnStatistics,
	lambda float64,
	seed uint64,
	choice qaoa.Choice,
	qres *qaoa.Result,
	bits []int,
	degenerate bool,
	cres *markowitz.Result,
) *Response {
	qWeights := make([]float64, len(bits))
	for i, b := range bits {
		qWeights[i] = float64(b)
	}
	qWeights = analytics.Normalize(qWeights)
	cWeights := analytics.Normalize(cres.Weights)

	benchmark, benchReturns := s.benchmark(ctx, stats.Dates)

	solver := func(l float64) ([]float64, error) {
		r, err := s.classical.Optimize(stats.Mean, stats.Cov, l, seed)
		if err != nil {
			return nil, err
		}
		return r.Weights, nil
	}
	frontier := analytics.Frontier(stats.Mean, stats.Cov, solver, analytics.DefaultFrontierConfig())
	frontier = append(frontier,
		analytics.PointFor(qWeights, stats.Mean, stats.Cov, analytics.KindQAOA),
		analytics.PointFor(cWeights, stats.Mean, stats.Cov, analytics.KindClassical),
	)

	fallback := choice.Fallback || qres.UsedFallback
	reason := choice.Reason
	if qres.UsedFallback {
		reason = qres.FallbackReason
	}
	var reasonPtr *string
	if fallback {
		reasonPtr = &reason
	}

	return &Response{
		RunID:   runID,
		Tickers: stats.Tickers,
		Dropped: stats.Dropped,
		Quantum: QuantumResult{
			Allocation: toPercentMap(stats.Tickers, qWeights),
			Metrics:    analytics.Evaluate(qWeights, stats.Mean, stats.Cov),
			Counts:     qres.Distribution,
			Trace:      qres.Trace,
			Degenerate: degenerate,
		},
		Classical: ClassicalResult{
			Allocation: toPercentMap(stats.Tickers, cWeights),
			Metrics:    analytics.Evaluate(cWeights, stats.Mean, stats.Cov),
		},
		Benchmark:   benchmark,
		Correlation: stats.Corr,
		Backend: BackendInfo{
			Name:           choice.Backend,
			Fallback:       fallback,
			FallbackReason: reasonPtr,
		},
		Frontier: frontier,
		Backtest: analytics.Backtest(stats.Dates, stats.Daily, qWeights, cWeights, benchReturns),
	}
}

// benchmark fetches the market benchmark and returns its annualized metrics
// plus its daily returns aligned on the universe calendar. A failed download
// degrades to hardcoded long-run figures and a zero return series.
func (s *Service) benchmark(ctx context.Context, dates []string) (analytics.Metrics, []float64) {
	series, err := s.data.FetchBenchmark(ctx, s.cfg.BenchmarkSymbol, s.cfg.HistoryWindowDays)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", s.cfg.BenchmarkSymbol).Msg("Benchmark fetch failed, using fallback metrics")
		return analytics.Metrics{
			ExpectedReturn: benchmarkFallbackReturn,
			Volatility:     benchmarkFallbackVol,
			SharpeRatio:    analytics.Sharpe(benchmarkFallbackReturn, benchmarkFallbackVol),
		}, make([]float64, len(dates))
	}
	bDates, bReturns := marketdata.DailyReturns(series)
	return analytics.EvaluateSeries(bReturns), marketdata.AlignReturns(dates, bDates, bReturns)
}

func (s *Service) publish(runID string, data events.EventData) {
	if s.bus != nil {
		s.bus.Publish(runID, data)
	}
}

// normalizeTickers uppercases, trims, dedupes preserving order, and checks
// format and universe size.
func normalizeTickers(raw []string) ([]string, *Error) {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := strings.ToUpper(strings.TrimSpace(r))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		if !tickerPattern.MatchString(t) {
			return nil, newError(KindInvalidInput, fmt.Sprintf("malformed ticker %q", r), nil)
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) < MinTickers || len(out) > MaxTickers {
		return nil, newError(KindInvalidInput,
			fmt.Sprintf("universe must hold %d to %d distinct tickers, got %d", MinTickers, MaxTickers, len(out)), nil)
	}
	return out, nil
}

func classifyDataError(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, "market data fetch exceeded the request budget", err)
	case errors.Is(err, marketdata.ErrInsufficientUniverse):
		return newError(KindInsufficientHistory, "too few tickers with usable history", err)
	default:
		return newError(KindInternal, "market data fetch failed", err)
	}
}

func classifyQuantumError(err error, partial *qaoa.Result) *Error {
	var trace []float64
	if partial != nil {
		trace = partial.Trace
	}
	var perr *Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		perr = newError(KindTimeout, "variational loop exceeded the request budget", err)
	case errors.Is(err, qaoa.ErrEvaluatorUnavailable):
		perr = newError(KindEvaluatorUnavailable, "no evaluator could finish the run", err)
	case errors.Is(err, context.Canceled):
		perr = newError(KindTimeout, "variational loop canceled", err)
	default:
		perr = newError(KindInternal, "variational loop failed", err)
	}
	perr.Trace = trace
	return perr
}

func toPercentMap(tickers []string, weights []float64) map[string]float64 {
	out := make(map[string]float64, len(tickers))
	for i, t := range tickers {
		out[t] = weights[i] * 100
	}
	return out
}

func droppedNames(dropped []marketdata.DroppedTicker) []string {
	names := make([]string, len(dropped))
	for i, d := range dropped {
		names[i] = d.Ticker
	}
	return names
}

func countOnes(bits []int) int {
	n := 0
	for _, b := range bits {
		if b == 1 {
			n++
		}
	}
	return n
}

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
