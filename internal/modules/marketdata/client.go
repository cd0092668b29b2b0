package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// ErrNoData is returned when the provider has no history for a symbol.
var ErrNoData = errors.New("no price data for symbol")

// statsCacheTTL bounds how long derived statistics are reused. History only
// changes once per trading day, so a short TTL is plenty.
const statsCacheTTL = 15 * time.Minute

// refreshAfter is how stale the newest cached bar may be before we hit the
// provider again. Covers weekends and single holidays.
const refreshAfter = 4 * 24 * time.Hour

// Client fetches daily close history from a free CSV provider (Stooq-style
// endpoint, no credential required), reading through the sqlite history
// repository.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	repo    *HistoryRepository
	stats   *gocache.Cache
	log     zerolog.Logger

	// now is swapped in tests to pin the history window
	now func() time.Time
}

// NewClient creates a market data client. repo is optional; without it every
// call downloads fresh history.
func NewClient(baseURL string, repo *HistoryRepository, log zerolog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
		repo:    repo,
		stats:   gocache.New(statsCacheTTL, 2*statsCacheTTL),
		log:     log.With().Str("client", "marketdata").Logger(),
		now:     time.Now,
	}
}

// FetchDaily returns the daily close history for each symbol over the last
// windowDays, keyed by symbol. Symbols with no data get a zero-length series
// rather than failing the whole batch; the statistics step records the drop.
func (c *Client) FetchDaily(ctx context.Context, symbols []string, windowDays int) (map[string]Series, error) {
	from := c.now().AddDate(0, 0, -windowDays).Format("2006-01-02")
	to := c.now().Format("2006-01-02")

	out := make(map[string]Series, len(symbols))
	for _, symbol := range symbols {
		series, err := c.fetchOne(ctx, symbol, from, to)
		if err != nil {
			if errors.Is(err, ErrNoData) {
				c.log.Warn().Str("symbol", symbol).Msg("No price data")
				out[symbol] = Series{Symbol: symbol}
				continue
			}
			return nil, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		out[symbol] = series
	}
	return out, nil
}

// FetchBenchmark returns the daily close history for the benchmark symbol.
func (c *Client) FetchBenchmark(ctx context.Context, symbol string, windowDays int) (Series, error) {
	from := c.now().AddDate(0, 0, -windowDays).Format("2006-01-02")
	to := c.now().Format("2006-01-02")
	return c.fetchOne(ctx, symbol, from, to)
}

// Statistics fetches history for the universe and derives return statistics,
// memoized per (universe, window) for a short TTL.
func (c *Client) Statistics(ctx context.Context, symbols []string, windowDays int) (*ReturnStatistics, error) {
	key := strings.Join(symbols, ",") + "|" + strconv.Itoa(windowDays)
	if cached, ok := c.stats.Get(key); ok {
		return cached.(*ReturnStatistics), nil
	}

	series, err := c.FetchDaily(ctx, symbols, windowDays)
	if err != nil {
		return nil, err
	}

	ordered := make([]Series, 0, len(symbols))
	for _, s := range symbols {
		ordered = append(ordered, series[s])
	}

	stats, err := ComputeStatistics(ordered, MinHistoryDays)
	if err != nil {
		return nil, err
	}

	c.stats.Set(key, stats, gocache.DefaultExpiration)
	return stats, nil
}

// fetchOne reads through the repository cache, downloading only when the
// cached history is missing or stale.
func (c *Client) fetchOne(ctx context.Context, symbol, from, to string) (Series, error) {
	if c.repo != nil {
		latest, err := c.repo.LatestDate(symbol)
		if err == nil && latest != "" {
			if d, perr := time.Parse("2006-01-02", latest); perr == nil && c.now().Sub(d) < refreshAfter {
				bars, err := c.repo.GetRange(symbol, from, to)
				if err == nil && len(bars) > 0 {
					c.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("History cache hit")
					return Series{Symbol: symbol, Bars: bars}, nil
				}
			}
		}
	}

	bars, err := c.download(ctx, symbol, from, to)
	if err != nil {
		// A failed download can still be served from stale cache.
		if c.repo != nil {
			if stale, rerr := c.repo.GetRange(symbol, from, to); rerr == nil && len(stale) > 0 {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Download failed, using stale history")
				return Series{Symbol: symbol, Bars: stale}, nil
			}
		}
		return Series{}, err
	}

	if c.repo != nil {
		if err := c.repo.Store(symbol, bars); err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache history")
		}
	}
	return Series{Symbol: symbol, Bars: bars}, nil
}

// download fetches and parses one symbol's CSV history.
// The endpoint follows Stooq's export format:
// /q/d/l/?s=<symbol>.us&d1=<YYYYMMDD>&d2=<YYYYMMDD>&i=d
func (c *Client) download(ctx context.Context, symbol, from, to string) ([]Bar, error) {
	q := url.Values{}
	q.Set("s", strings.ToLower(symbol)+".us")
	q.Set("d1", strings.ReplaceAll(from, "-", ""))
	q.Set("d2", strings.ReplaceAll(to, "-", ""))
	q.Set("i", "d")
	u := c.baseURL + "/?" + q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	bars, err := parseCSV(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	c.log.Info().Str("symbol", symbol).Int("bars", len(bars)).Msg("Downloaded history")
	return bars, nil
}

// parseCSV reads a Date,Open,High,Low,Close[,Volume] export. Rows with an
// unparseable date or close are skipped.
func parseCSV(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	var bars []Bar
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && strings.EqualFold(rec[0], "Date") {
			continue
		}
		if len(rec) < 5 {
			continue
		}
		if _, err := time.Parse("2006-01-02", rec[0]); err != nil {
			continue
		}
		close, err := strconv.ParseFloat(rec[4], 64)
		if err != nil || close <= 0 {
			continue
		}
		bars = append(bars, Bar{Date: rec[0], Close: close})
	}
	return bars, nil
}
