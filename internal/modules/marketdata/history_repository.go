package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Schema for the price-history cache database.
const Schema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	close REAL NOT NULL,
	fetched_at TEXT NOT NULL,
	PRIMARY KEY (symbol, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
`

// HistoryRepository persists daily closes so repeated optimizations over the
// same universe do not re-download history.
type HistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryRepository creates a new price-history repository.
func NewHistoryRepository(db *sql.DB, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// GetRange returns the cached closes for a symbol within [from, to],
// ordered by date ascending. Dates are YYYY-MM-DD strings, which sort
// correctly as text.
func (r *HistoryRepository) GetRange(symbol, from, to string) ([]Bar, error) {
	rows, err := r.db.Query(
		`SELECT date, close FROM daily_prices
		 WHERE symbol = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		symbol, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Date, &b.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return bars, nil
}

// LatestDate returns the most recent cached date for a symbol, or the empty
// string when nothing is cached.
func (r *HistoryRepository) LatestDate(symbol string) (string, error) {
	var date sql.NullString
	err := r.db.QueryRow(
		`SELECT MAX(date) FROM daily_prices WHERE symbol = ?`, symbol,
	).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("failed to query latest date: %w", err)
	}
	if !date.Valid {
		return "", nil
	}
	return date.String, nil
}

// Store upserts a batch of closes for a symbol in a single transaction.
func (r *HistoryRepository) Store(symbol string, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO daily_prices (symbol, date, close, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(symbol, date) DO UPDATE SET
			close = excluded.close,
			fetched_at = excluded.fetched_at`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, b := range bars {
		if _, err := stmt.Exec(symbol, b.Date, b.Close, now); err != nil {
			return fmt.Errorf("failed to upsert %s %s: %w", symbol, b.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Stored daily prices")
	return nil
}

// Prune deletes rows older than the cutoff date. Run daily by the
// maintenance cron so the cache does not grow past the history window.
func (r *HistoryRepository) Prune(cutoff string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM daily_prices WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune daily prices: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.log.Info().Int64("rows", n).Str("cutoff", cutoff).Msg("Pruned stale price history")
	}
	return n, nil
}
