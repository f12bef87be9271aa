// Package archive stores every measurement a station records in SQLite.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloudpico-station/internal/weather/types"
)

//go:embed sql/ensure-station.sql
var ensureStationSQL string

//go:embed sql/get-station-id-by-name.sql
var getStationIDByNameSQL string

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/get-readings-count.sql
var getReadingsCountSQL string

// tsLayout is fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Repository interface {
	InsertReading(ctx context.Context, stationID string, m types.Measurement) error
	LatestReadings(ctx context.Context, stationID string, limit int) ([]types.Measurement, error)
	ReadingsCount(ctx context.Context, stationID string) (int, error)
}

type repositoryImpl struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(db *sql.DB, logger *slog.Logger) Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &repositoryImpl{db: db, logger: logger}
}

// InsertReading stores m for the station named stationID, creating the
// station row on first use. A second reading with the same timestamp
// replaces the first.
func (r *repositoryImpl) InsertReading(ctx context.Context, stationID string, m types.Measurement) error {
	if stationID == "" {
		return errors.New("station id is required")
	}
	ts := m.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, ensureStationSQL, stationID); err != nil {
		return fmt.Errorf("ensure station %q: %w", stationID, err)
	}
	var dbStationID int64
	if err := tx.QueryRowContext(ctx, getStationIDByNameSQL, stationID).Scan(&dbStationID); err != nil {
		return fmt.Errorf("lookup station %q: %w", stationID, err)
	}

	_, err = tx.ExecContext(ctx, insertReadingSQL,
		dbStationID,
		ts.UTC().Format(tsLayout),
		m.Temperature,
		m.Humidity,
		m.Pressure,
		nullable(m.TempTop),
		nullable(m.TempBottom),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return tx.Commit()
}

// LatestReadings returns up to limit readings, newest first.
func (r *repositoryImpl) LatestReadings(ctx context.Context, stationID string, limit int) ([]types.Measurement, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, stationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error("close latest readings rows", "error", err)
		}
	}()

	var out []types.Measurement
	for rows.Next() {
		var (
			ts          string
			m           types.Measurement
			top, bottom sql.NullFloat64
		)
		if err := rows.Scan(&ts, &m.Temperature, &m.Humidity, &m.Pressure, &top, &bottom); err != nil {
			return nil, err
		}
		m.Time, err = time.Parse(tsLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse ts %q: %w", ts, err)
		}
		m.TempTop = fromNullable(top)
		m.TempBottom = fromNullable(bottom)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) ReadingsCount(ctx context.Context, stationID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, getReadingsCountSQL, stationID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
