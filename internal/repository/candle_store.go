package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
)

// CandleSchema returns idempotent DDL for the candle table.
func CandleSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			bucket DateTime,
			symbol LowCardinality(String),
			tf     LowCardinality(String),
			open   Float64,
			high   Float64,
			low    Float64,
			close  Float64,
			volume Float64
		) ENGINE = ReplacingMergeTree()
		PARTITION BY toYYYYMM(bucket)
		ORDER BY (symbol, tf, bucket)`, table),
	}
}

// ClickHouseCandleStore persists closed candles and serves them back to
// pipeline runs. One table holds every timeframe, keyed (symbol, tf, bucket);
// the ReplacingMergeTree engine collapses re-emitted candles.
type ClickHouseCandleStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseCandleStore creates a candle store over an open pool.
func NewClickHouseCandleStore(db *sql.DB, table string) *ClickHouseCandleStore {
	return &ClickHouseCandleStore{db: db, table: table}
}

func (s *ClickHouseCandleStore) WriteCandle(ctx context.Context, c *models.Candle) error {
	q := fmt.Sprintf("INSERT INTO %s (bucket, symbol, tf, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		c.Bucket, c.Symbol, c.TF, c.Open, c.High, c.Low, c.Close, c.Volume)
	if err != nil {
		return fmt.Errorf("write candle %s/%s: %w", c.Symbol, c.TF, err)
	}
	return nil
}

func (s *ClickHouseCandleStore) WriteBatch(ctx context.Context, cs []*models.Candle) error {
	if len(cs) == 0 {
		return nil
	}
	// multi-row VALUES to cut round-trips, chunked to bound statement size
	const chunkSize = 2000
	for start := 0; start < len(cs); start += chunkSize {
		end := start + chunkSize
		if end > len(cs) {
			end = len(cs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, c := range cs[start:end] {
			if c == nil || c.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Bucket, c.Symbol, c.TF, c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (bucket, symbol, tf, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("write candle batch: %w", err)
		}
	}
	return nil
}

// FetchCandles returns candles for [from, to] ordered ascending by bucket.
func (s *ClickHouseCandleStore) FetchCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, from, to time.Time) ([]models.Candle, error) {
	q := fmt.Sprintf(`SELECT bucket, symbol, tf, open, high, low, close, volume
		FROM %s FINAL
		WHERE symbol = ? AND tf = ? AND bucket >= ? AND bucket <= ?
		ORDER BY bucket ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s/%s: %w", symbol, tf, err)
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.TF, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestCandle returns the newest candle for the pair, or nil when the table
// has none.
func (s *ClickHouseCandleStore) LatestCandle(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.Candle, error) {
	q := fmt.Sprintf(`SELECT bucket, symbol, tf, open, high, low, close, volume
		FROM %s FINAL
		WHERE symbol = ? AND tf = ?
		ORDER BY bucket DESC LIMIT 1`, s.table)
	var c models.Candle
	err := s.db.QueryRowContext(ctx, q, symbol, string(tf)).
		Scan(&c.Bucket, &c.Symbol, &c.TF, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest candle %s/%s: %w", symbol, tf, err)
	}
	return &c, nil
}

func (s *ClickHouseCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ domrepo.MarketDataSource = (*ClickHouseCandleStore)(nil)
	_ domrepo.CandleWriter     = (*ClickHouseCandleStore)(nil)
)
