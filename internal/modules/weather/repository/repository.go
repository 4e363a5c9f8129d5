package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"weathervision/internal/modules/weather/types"
)

//go:embed sql/insert-record.sql
var insertRecordSQL string

//go:embed sql/get-record.sql
var getRecordSQL string

//go:embed sql/latest-record.sql
var latestRecordSQL string

//go:embed sql/list-records.sql
var listRecordsSQL string

//go:embed sql/aggregate-records.sql
var aggregateRecordsSQL string

//go:embed sql/update-record.sql
var updateRecordSQL string

//go:embed sql/delete-record.sql
var deleteRecordSQL string

// TimeLayout is how recorded_at is stored: UTC with fixed microsecond width,
// so text comparison in SQL orders chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

type WeatherRepository interface {
	Create(ctx context.Context, rec types.Record) (types.Record, error)
	GetByID(ctx context.Context, id int64) (types.Record, error)
	List(ctx context.Context, filter types.Filter) ([]types.Record, error)
	// Latest returns nil, nil when the store is empty.
	Latest(ctx context.Context) (*types.Record, error)
	// Update replaces every mutable field; id and recorded_at are kept.
	Update(ctx context.Context, rec types.Record) (types.Record, error)
	Delete(ctx context.Context, id int64) error
	Aggregate(ctx context.Context, filter types.Filter) (types.Statistics, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) WeatherRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	rec.RecordedAt = rec.RecordedAt.UTC().Truncate(time.Microsecond)
	rec.Temperature = types.RoundHundredths(rec.Temperature)
	rec.WindSpeed = types.RoundHundredths(rec.WindSpeed)

	res, err := r.db.ExecContext(ctx, insertRecordSQL,
		rec.City,
		rec.Country,
		rec.Temperature,
		rec.Humidity,
		rec.Pressure,
		rec.Description,
		rec.WindSpeed,
		nullableInt(rec.WindDirection),
		rec.RecordedAt.Format(TimeLayout),
		rec.APISource,
	)
	if err != nil {
		return types.Record{}, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Record{}, fmt.Errorf("insert record id: %w", err)
	}
	rec.ID = id
	return rec, nil
}

func (r *repositoryImpl) GetByID(ctx context.Context, id int64) (types.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, getRecordSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, ErrNotFound
	}
	if err != nil {
		return types.Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

func (r *repositoryImpl) List(ctx context.Context, filter types.Filter) ([]types.Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	city, since := filterArgs(filter)
	rows, err := r.db.QueryContext(ctx, listRecordsSQL, city, since, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close records rows", "error", err)
		}
	}()

	out := make([]types.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) Latest(ctx context.Context) (*types.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, latestRecordSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest record: %w", err)
	}
	return &rec, nil
}

func (r *repositoryImpl) Update(ctx context.Context, rec types.Record) (types.Record, error) {
	res, err := r.db.ExecContext(ctx, updateRecordSQL,
		rec.City,
		rec.Country,
		types.RoundHundredths(rec.Temperature),
		rec.Humidity,
		rec.Pressure,
		rec.Description,
		types.RoundHundredths(rec.WindSpeed),
		nullableInt(rec.WindDirection),
		rec.APISource,
		rec.ID,
	)
	if err != nil {
		return types.Record{}, fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Record{}, fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	if n == 0 {
		return types.Record{}, ErrNotFound
	}
	return r.GetByID(ctx, rec.ID)
}

func (r *repositoryImpl) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteRecordSQL, id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Aggregate computes the statistics over the filtered set in one statement.
// An empty set yields TotalRecords == 0 with zeroed aggregates.
func (r *repositoryImpl) Aggregate(ctx context.Context, filter types.Filter) (types.Statistics, error) {
	city, since := filterArgs(filter)
	var s types.Statistics
	err := r.db.QueryRowContext(ctx, aggregateRecordsSQL, city, since).Scan(
		&s.TotalRecords,
		&s.AvgTemperature,
		&s.MaxTemperature,
		&s.MinTemperature,
		&s.AvgHumidity,
		&s.AvgPressure,
	)
	if err != nil {
		return types.Statistics{}, fmt.Errorf("aggregate records: %w", err)
	}
	return s, nil
}

// EscapeLike escapes the LIKE wildcards so s matches literally with ESCAPE '\'.
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func filterArgs(filter types.Filter) (city string, since string) {
	if filter.CityContains != "" {
		city = EscapeLike(filter.CityContains)
	}
	if !filter.Since.IsZero() {
		since = filter.Since.UTC().Format(TimeLayout)
	}
	return city, since
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (types.Record, error) {
	var (
		rec     types.Record
		windDir sql.NullInt64
		ts      string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.City,
		&rec.Country,
		&rec.Temperature,
		&rec.Humidity,
		&rec.Pressure,
		&rec.Description,
		&rec.WindSpeed,
		&windDir,
		&ts,
		&rec.APISource,
	); err != nil {
		return types.Record{}, err
	}
	if windDir.Valid {
		v := int(windDir.Int64)
		rec.WindDirection = &v
	}
	t, err := parseTimestamp(ts)
	if err != nil {
		return types.Record{}, err
	}
	rec.RecordedAt = t
	return rec, nil
}

func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, ts)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, ts)
	if err2 != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w; RFC3339Nano: %w", ts, err, err2)
	}
	return t.UTC(), nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
