package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"weathervision/internal/metrics"
	"weathervision/internal/modules/weather/repository"
	"weathervision/internal/modules/weather/types"

	"github.com/go-playground/validator/v10"
)

// Fetcher fetches current conditions for a city from the external provider.
type Fetcher interface {
	CurrentWeather(ctx context.Context, city string) (types.RecordInput, error)
}

type Service struct {
	repository repository.WeatherRepository
	fetcher    Fetcher
	validate   *validator.Validate
	metrics    *metrics.Recorder
	now        func() time.Time
}

func NewService(repo repository.WeatherRepository, fetcher Fetcher, m *metrics.Recorder) *Service {
	return &Service{
		repository: repo,
		fetcher:    fetcher,
		validate:   newValidator(),
		metrics:    m,
		now:        time.Now,
	}
}

// CreateRecord validates in, applies defaults and stores it. source labels
// the created-records metric.
func (s *Service) CreateRecord(ctx context.Context, in types.RecordInput, source string) (types.Record, error) {
	in = trimInput(in)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return types.Record{}, toValidationError(err)
	}
	rec, err := s.repository.Create(ctx, in.Record(s.now()))
	if err != nil {
		return types.Record{}, err
	}
	s.metrics.RecordCreated(source)
	return rec, nil
}

func (s *Service) GetRecord(ctx context.Context, id int64) (types.Record, error) {
	return s.repository.GetByID(ctx, id)
}

// ListRecords returns records newest first. limit <= 0 returns everything.
func (s *Service) ListRecords(ctx context.Context, limit, offset int) ([]types.Record, error) {
	return s.repository.List(ctx, types.Filter{Limit: limit, Offset: offset})
}

// UpdateRecord replaces the required fields of record id. Optional fields
// left out of in keep their stored value; recorded_at never changes.
func (s *Service) UpdateRecord(ctx context.Context, id int64, in types.RecordInput) (types.Record, error) {
	in = trimInput(in)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return types.Record{}, toValidationError(err)
	}
	existing, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return types.Record{}, err
	}

	rec := existing
	rec.City = *in.City
	rec.Temperature = types.RoundHundredths(*in.Temperature)
	rec.Humidity = *in.Humidity
	rec.Pressure = *in.Pressure
	rec.Description = *in.Description
	rec.WindSpeed = types.RoundHundredths(*in.WindSpeed)
	if in.Country != nil {
		rec.Country = *in.Country
	}
	if in.WindDirection != nil {
		rec.WindDirection = in.WindDirection
	}
	if in.APISource != nil {
		rec.APISource = *in.APISource
	}
	return s.repository.Update(ctx, rec)
}

// PatchRecord changes only the fields present in p.
func (s *Service) PatchRecord(ctx context.Context, id int64, p types.RecordPatch) (types.Record, error) {
	p = trimPatch(p)
	fields := map[string]string{}
	if err := s.validate.StructCtx(ctx, p); err != nil {
		verr := toValidationError(err)
		var ve *ValidationError
		if !errors.As(verr, &ve) {
			return types.Record{}, verr
		}
		fields = ve.Fields
	}
	if v := p.WindDirection.Value; p.WindDirection.Set && v != nil && (*v < 0 || *v > 360) {
		fields["wind_direction"] = "must be between 0 and 360"
	}
	if len(fields) > 0 {
		return types.Record{}, &ValidationError{Fields: fields}
	}

	existing, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return types.Record{}, err
	}
	return s.repository.Update(ctx, p.ApplyTo(existing))
}

func (s *Service) DeleteRecord(ctx context.Context, id int64) error {
	return s.repository.Delete(ctx, id)
}

// Latest returns nil when no record exists.
func (s *Service) Latest(ctx context.Context) (*types.Record, error) {
	return s.repository.Latest(ctx)
}

func (s *Service) RecordsByCity(ctx context.Context, city string) ([]types.Record, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrCityRequired
	}
	return s.repository.List(ctx, types.Filter{CityContains: city})
}

// Statistics aggregates over the records matching city (substring, any case)
// and recorded in the last days days. Blank arguments do not filter.
func (s *Service) Statistics(ctx context.Context, city, days string) (types.Statistics, error) {
	filter := types.Filter{CityContains: strings.TrimSpace(city)}
	if d := strings.TrimSpace(days); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return types.Statistics{}, fmt.Errorf("%w: %q", ErrInvalidDays, days)
		}
		filter.Since = windowStart(s.now(), n)
	}

	stats, err := s.repository.Aggregate(ctx, filter)
	if err != nil {
		return types.Statistics{}, err
	}
	if stats.TotalRecords == 0 {
		return types.Statistics{}, ErrNoData
	}
	return stats, nil
}

// FetchAndStore pulls current conditions for city from the provider and
// stores them. Nothing is stored when the fetch fails.
func (s *Service) FetchAndStore(ctx context.Context, city string) (types.Record, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return types.Record{}, ErrCityRequired
	}
	in, err := s.fetcher.CurrentWeather(ctx, city)
	if err != nil {
		return types.Record{}, err
	}

	rec := in.Record(s.now())
	rec.City = truncate(rec.City, 100)
	rec.Country = truncate(rec.Country, 100)
	rec.Description = truncate(rec.Description, 255)
	if rec.City == "" {
		rec.City = truncate(city, 100)
	}

	stored, err := s.repository.Create(ctx, rec)
	if err != nil {
		return types.Record{}, err
	}
	s.metrics.RecordCreated(metrics.SourceProvider)
	slog.InfoContext(ctx, "stored provider record", "id", stored.ID, "city", stored.City)
	return stored, nil
}

var (
	minWindowStart = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxWindowStart = time.Date(9999, 12, 31, 23, 59, 59, 999999000, time.UTC)
)

// windowStart is now minus days whole days, clamped to years 1..9999.
func windowStart(now time.Time, days int) time.Time {
	const maxDays = 10000 * 366
	switch {
	case days > maxDays:
		return minWindowStart
	case days < -maxDays:
		return maxWindowStart
	}
	t := now.UTC().AddDate(0, 0, -days)
	if t.Before(minWindowStart) {
		return minWindowStart
	}
	if t.After(maxWindowStart) {
		return maxWindowStart
	}
	return t
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func trimInput(in types.RecordInput) types.RecordInput {
	in.City = trimPtr(in.City)
	in.Country = trimPtr(in.Country)
	in.Description = trimPtr(in.Description)
	in.APISource = trimPtr(in.APISource)
	return in
}

func trimPatch(p types.RecordPatch) types.RecordPatch {
	p.City = trimPtr(p.City)
	p.Country = trimPtr(p.Country)
	p.Description = trimPtr(p.Description)
	p.APISource = trimPtr(p.APISource)
	return p
}
