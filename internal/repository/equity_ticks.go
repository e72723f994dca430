package repository

import (
	"time"

	"github.com/samber/lo"

	"equity_monitor/internal/database"
	"equity_monitor/internal/models"
)

// EquityTickRepository records published equity ticks for chart backfill.
type EquityTickRepository struct {
	db *database.DB
}

// NewEquityTickRepository creates a new EquityTickRepository.
func NewEquityTickRepository(db *database.DB) *EquityTickRepository {
	return &EquityTickRepository{db: db}
}

// Record inserts a tick. Ticks without a total are not recorded.
func (r *EquityTickRepository) Record(tick models.EquityTick) error {
	if tick.Total == nil {
		return nil
	}
	_, err := r.db.Exec(`
		INSERT INTO equity_ticks (ts, total, currency)
		VALUES (?, ?, ?)
	`, tick.Timestamp, *tick.Total, tick.Currency)
	return err
}

// Recent returns the most recent limit ticks, oldest first.
func (r *EquityTickRepository) Recent(limit int) ([]models.EquityTick, error) {
	rows, err := r.db.Query(`
		SELECT ts, total, currency
		FROM equity_ticks
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ticks := make([]models.EquityTick, 0, limit)
	for rows.Next() {
		var tick models.EquityTick
		var total float64
		if err := rows.Scan(&tick.Timestamp, &total, &tick.Currency); err != nil {
			return nil, err
		}
		tick.Total = &total
		ticks = append(ticks, tick)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lo.Reverse(ticks), nil
}

// PruneOlderThan deletes ticks recorded before the cutoff.
func (r *EquityTickRepository) PruneOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM equity_ticks WHERE ts < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
