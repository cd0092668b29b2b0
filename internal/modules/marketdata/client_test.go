package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

const sampleCSV = `Date,Open,High,Low,Close,Volume
2024-01-02,100.0,101.0,99.0,100.5,1000
2024-01-03,100.5,102.0,100.0,101.2,1200
2024-01-04,101.2,101.5,98.0,99.8,900
`

func setupHistoryDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)
	return db
}

func TestParseCSV(t *testing.T) {
	bars, err := parseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, Bar{Date: "2024-01-02", Close: 100.5}, bars[0])
	assert.Equal(t, Bar{Date: "2024-01-04", Close: 99.8}, bars[2])
}

func TestParseCSVSkipsBadRows(t *testing.T) {
	csv := "Date,Open,High,Low,Close,Volume\n" +
		"not-a-date,1,1,1,1,1\n" +
		"2024-01-02,1,1,1,abc,1\n" +
		"2024-01-03,1,1,1,-5,1\n" +
		"2024-01-04,100,101,99,100.5,1000\n"
	bars, err := parseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2024-01-04", bars[0].Date)
}

func TestClientFetchDaily(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "d", r.URL.Query().Get("i"))
		assert.True(t, strings.HasSuffix(r.URL.Query().Get("s"), ".us"))
		fmt.Fprint(w, sampleCSV)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	series, err := c.FetchDaily(context.Background(), []string{"AAPL", "MSFT"}, 30)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Len(t, series["AAPL"].Bars, 3)
	assert.Equal(t, 2, requests)
}

func TestClientReadsThroughRepository(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, sampleCSV)
	}))
	defer srv.Close()

	repo := NewHistoryRepository(setupHistoryDB(t), zerolog.Nop())
	c := NewClient(srv.URL, repo, zerolog.Nop())
	// Pin "now" so the sample dates count as fresh.
	c.now = func() time.Time { return time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC) }

	_, err := c.FetchDaily(context.Background(), []string{"AAPL"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	// Second fetch is served from sqlite.
	series, err := c.FetchDaily(context.Background(), []string{"AAPL"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
	assert.Len(t, series["AAPL"].Bars, 3)
}

func TestClientNoDataSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("s"), "gone") {
			fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n")
			return
		}
		fmt.Fprint(w, sampleCSV)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	series, err := c.FetchDaily(context.Background(), []string{"AAPL", "GONE"}, 30)
	require.NoError(t, err)
	assert.Len(t, series["AAPL"].Bars, 3)
	assert.Empty(t, series["GONE"].Bars)
}

func TestClientBenchmarkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	_, err := c.FetchBenchmark(context.Background(), "SPY", 30)
	assert.Error(t, err)
}

func TestClientStatisticsCached(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// 40 trading days so the universe survives the minimum-history check
		fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n")
		price := 100.0
		for i := 0; i < 40; i++ {
			fmt.Fprintf(w, "2024-%02d-%02d,0,0,0,%.4f,0\n", 1+i/28, 1+i%28, price)
			price *= 1.001
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, zerolog.Nop())
	stats, err := c.Statistics(context.Background(), []string{"AAA", "BBB"}, 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, stats.Tickers)
	assert.Equal(t, 2, requests)

	again, err := c.Statistics(context.Background(), []string{"AAA", "BBB"}, 60)
	require.NoError(t, err)
	assert.Same(t, stats, again)
	assert.Equal(t, 2, requests)
}

func TestHistoryRepository(t *testing.T) {
	repo := NewHistoryRepository(setupHistoryDB(t), zerolog.Nop())

	bars := []Bar{
		{Date: "2024-01-02", Close: 100},
		{Date: "2024-01-03", Close: 101},
		{Date: "2024-02-01", Close: 105},
	}
	require.NoError(t, repo.Store("AAPL", bars))

	t.Run("range query", func(t *testing.T) {
		got, err := repo.GetRange("AAPL", "2024-01-01", "2024-01-31")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("latest date", func(t *testing.T) {
		latest, err := repo.LatestDate("AAPL")
		require.NoError(t, err)
		assert.Equal(t, "2024-02-01", latest)

		latest, err = repo.LatestDate("UNKNOWN")
		require.NoError(t, err)
		assert.Empty(t, latest)
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		require.NoError(t, repo.Store("AAPL", []Bar{{Date: "2024-01-02", Close: 99.5}}))
		got, err := repo.GetRange("AAPL", "2024-01-02", "2024-01-02")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 99.5, got[0].Close)
	})

	t.Run("prune", func(t *testing.T) {
		n, err := repo.Prune("2024-02-01")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		got, err := repo.GetRange("AAPL", "2024-01-01", "2024-12-31")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
