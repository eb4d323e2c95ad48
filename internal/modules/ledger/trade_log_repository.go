package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lynchbot/screener-trader/internal/domain"
)

// TradeLogEntry is one audited decision row. The ledger file only keeps the
// latest lifecycle per ticker; the trade log keeps everything that ever
// happened, across re-entries.
type TradeLogEntry struct {
	ID        int64             `json:"id"`
	RunID     string            `json:"run_id"`
	Epoch     string            `json:"epoch"`
	Ticker    string            `json:"ticker"`
	Action    domain.ActionKind `json:"action"`
	Category  domain.Category   `json:"category"`
	Stage     int               `json:"stage"`
	WeightPct float64           `json:"weight_pct"`
	Rank      int               `json:"rank"`
	Price     float64           `json:"price"`
	Reason    string            `json:"reason"`
	CreatedAt string            `json:"created_at"`
}

// CycleRecord is one audited evaluation cycle
type CycleRecord struct {
	RunID          string  `json:"run_id"`
	Epoch          string  `json:"epoch"`
	RanAt          string  `json:"ran_at"`
	InvestedWeight float64 `json:"invested_weight"`
	Admitted       int     `json:"admitted"`
	Sold           int     `json:"sold"`
	SaveFailed     bool    `json:"save_failed"`
}

// TradeLogRepository handles trade audit database operations
type TradeLogRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeLogRepository creates a new trade log repository
func NewTradeLogRepository(db *sql.DB, log zerolog.Logger) *TradeLogRepository {
	return &TradeLogRepository{
		db:  db,
		log: log.With().Str("repo", "trade_log").Logger(),
	}
}

// RecordCycle inserts the cycle row and its trade rows in one transaction
func (r *TradeLogRepository) RecordCycle(cycle CycleRecord, entries []TradeLogEntry) error {
	now := time.Now().Format(time.RFC3339)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO cycles (run_id, epoch, ran_at, invested_weight, admitted, sold, save_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		cycle.RunID,
		cycle.Epoch,
		cycle.RanAt,
		cycle.InvestedWeight,
		cycle.Admitted,
		cycle.Sold,
		boolToInt(cycle.SaveFailed),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}

	for _, entry := range entries {
		_, err = tx.Exec(`
			INSERT INTO trades (run_id, epoch, ticker, action, category, stage, weight_pct, rank, price, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			cycle.RunID,
			cycle.Epoch,
			entry.Ticker,
			string(entry.Action),
			string(entry.Category),
			entry.Stage,
			entry.WeightPct,
			nullInt(entry.Rank),
			nullFloat64(entry.Price),
			nullString(entry.Reason),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trade for %s: %w", entry.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().
		Str("run_id", cycle.RunID).
		Str("epoch", cycle.Epoch).
		Int("trades", len(entries)).
		Msg("Cycle recorded")
	return nil
}

// GetByEpoch returns all trades recorded for one epoch
func (r *TradeLogRepository) GetByEpoch(epoch string) ([]TradeLogEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, run_id, epoch, ticker, action, category, stage, weight_pct, rank, price, reason, created_at
		FROM trades
		WHERE epoch = ?
		ORDER BY id
	`, epoch)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetRecent returns the most recent trades, newest first
func (r *TradeLogRepository) GetRecent(limit int) ([]TradeLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, run_id, epoch, ticker, action, category, stage, weight_pct, rank, price, reason, created_at
		FROM trades
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetLastCycle returns the most recent cycle record, or nil if none exist
func (r *TradeLogRepository) GetLastCycle() (*CycleRecord, error) {
	row := r.db.QueryRow(`
		SELECT run_id, epoch, ran_at, invested_weight, admitted, sold, save_failed
		FROM cycles
		ORDER BY ran_at DESC
		LIMIT 1
	`)

	var rec CycleRecord
	var saveFailed int
	err := row.Scan(&rec.RunID, &rec.Epoch, &rec.RanAt, &rec.InvestedWeight, &rec.Admitted, &rec.Sold, &saveFailed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cycle: %w", err)
	}
	rec.SaveFailed = saveFailed != 0
	return &rec, nil
}

func scanTrades(rows *sql.Rows) ([]TradeLogEntry, error) {
	var entries []TradeLogEntry
	for rows.Next() {
		var entry TradeLogEntry
		var rank sql.NullInt64
		var price sql.NullFloat64
		var reason sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.RunID,
			&entry.Epoch,
			&entry.Ticker,
			&entry.Action,
			&entry.Category,
			&entry.Stage,
			&entry.WeightPct,
			&rank,
			&price,
			&reason,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		if rank.Valid {
			entry.Rank = int(rank.Int64)
		}
		if price.Valid {
			entry.Price = price.Float64
		}
		if reason.Valid {
			entry.Reason = reason.String
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return entries, nil
}

// Helper functions for nullable types

func nullFloat64(val float64) sql.NullFloat64 {
	if val == 0 {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: val, Valid: true}
}

func nullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}

func nullInt(val int) sql.NullInt64 {
	if val == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(val), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
