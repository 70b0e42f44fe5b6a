package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"GoldPulse/internal/domain/models"
)

// ClickHouseSignalStore implements SignalStore on ClickHouse. The table is
// a ReplacingMergeTree versioned by updated_at, so lifecycle transitions
// are appended and collapse to the latest row; reads use FINAL.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseSignalStore creates ClickHouse signal storage.
func NewClickHouseSignalStore(db *sql.DB, table string) *ClickHouseSignalStore {
	return &ClickHouseSignalStore{db: db, table: table}
}

// Schema returns the idempotent DDL for the signal table.
func (s *ClickHouseSignalStore) Schema() []string {
	return []string{fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id            String,
    symbol        LowCardinality(String),
    timeframe     LowCardinality(String),
    strategy      LowCardinality(String),
    direction     LowCardinality(String),
    entry         Float64,
    stop_loss     Float64,
    take_profit   Float64,
    confidence    Float64,
    risk_reward   Float64,
    notes         String,
    candle_time   DateTime64(3, 'UTC'),
    published_at  DateTime64(3, 'UTC'),
    status        LowCardinality(String),
    ticket        String,
    lots          Float64,
    fill_price    Float64,
    executed_at   Nullable(DateTime64(3, 'UTC')),
    exit_price    Float64,
    pnl           Float64,
    close_reason  LowCardinality(String),
    closed_at     Nullable(DateTime64(3, 'UTC')),
    reject_reason String,
    updated_at    DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (symbol, published_at, id)`, s.table)}
}

func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	for _, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init signal schema: %w", err)
		}
	}
	return nil
}

const signalColumns = `id, symbol, timeframe, strategy, direction, entry, stop_loss, take_profit,
confidence, risk_reward, notes, candle_time, published_at, status, ticket, lots,
fill_price, executed_at, exit_price, pnl, close_reason, closed_at, reject_reason, updated_at`

func (s *ClickHouseSignalStore) insert(ctx context.Context, sig *models.Signal) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.table, signalColumns)
	_, err := s.db.ExecContext(ctx, q,
		sig.ID,
		sig.Symbol,
		sig.Timeframe,
		sig.Strategy,
		string(sig.Direction),
		sig.Entry,
		sig.StopLoss,
		sig.TakeProfit,
		sig.Confidence,
		sig.RiskReward,
		sig.Notes,
		sig.CandleTime,
		sig.PublishedAt,
		string(sig.Status),
		sig.Ticket,
		sig.Lots,
		sig.FillPrice,
		sig.ExecutedAt,
		sig.ExitPrice,
		sig.PnL,
		string(sig.CloseReason),
		sig.ClosedAt,
		sig.RejectReason,
		time.Now().UTC(),
	)
	return err
}

func (s *ClickHouseSignalStore) Store(ctx context.Context, sig *models.Signal) error {
	return s.insert(ctx, sig)
}

// UpdateStatus appends a new version row; ReplacingMergeTree keeps the one
// with the latest updated_at.
func (s *ClickHouseSignalStore) UpdateStatus(ctx context.Context, sig *models.Signal) error {
	return s.insert(ctx, sig)
}

func (s *ClickHouseSignalStore) Recent(ctx context.Context, symbol string, limit int) ([]*models.Signal, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE symbol = ? ORDER BY published_at DESC LIMIT ?",
		signalColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (s *ClickHouseSignalStore) ByID(ctx context.Context, id string) (*models.Signal, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE id = ? LIMIT 1", signalColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sigs, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, sql.ErrNoRows
	}
	return sigs[0], nil
}

// PublishedSince returns every signal published after since. Status is not
// filtered: a closed or rejected signal still represents an announced
// market event for dedup purposes.
func (s *ClickHouseSignalStore) PublishedSince(ctx context.Context, since time.Time) ([]*models.Signal, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE published_at >= ?", signalColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignals(rows)
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // pool managed by pkg/clickhouse
}

func scanSignals(rows *sql.Rows) ([]*models.Signal, error) {
	var out []*models.Signal
	for rows.Next() {
		var sig models.Signal
		var direction, status, closeReason string
		var executedAt, closedAt sql.NullTime
		var updatedAt time.Time
		if err := rows.Scan(
			&sig.ID,
			&sig.Symbol,
			&sig.Timeframe,
			&sig.Strategy,
			&direction,
			&sig.Entry,
			&sig.StopLoss,
			&sig.TakeProfit,
			&sig.Confidence,
			&sig.RiskReward,
			&sig.Notes,
			&sig.CandleTime,
			&sig.PublishedAt,
			&status,
			&sig.Ticket,
			&sig.Lots,
			&sig.FillPrice,
			&executedAt,
			&sig.ExitPrice,
			&sig.PnL,
			&closeReason,
			&closedAt,
			&sig.RejectReason,
			&updatedAt,
		); err != nil {
			return nil, err
		}
		sig.Direction = models.Direction(direction)
		sig.Status = models.Status(status)
		sig.CloseReason = models.CloseReason(closeReason)
		if executedAt.Valid {
			t := executedAt.Time
			sig.ExecutedAt = &t
		}
		if closedAt.Valid {
			t := closedAt.Time
			sig.ClosedAt = &t
		}
		out = append(out, &sig)
	}
	return out, rows.Err()
}
