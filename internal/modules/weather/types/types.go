package types

import (
	"encoding/json"
	"math"
	"time"
)

// DefaultAPISource is the provider identifier stored when none is given.
const DefaultAPISource = "openweathermap"

// Record is one stored weather observation.
type Record struct {
	ID            int64     `json:"id"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	Temperature   float64   `json:"temperature"`
	Humidity      int       `json:"humidity"`
	Pressure      int       `json:"pressure"`
	Description   string    `json:"description"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection *int      `json:"wind_direction"`
	RecordedAt    time.Time `json:"recorded_at"`
	APISource     string    `json:"api_source"`
}

// RecordInput is the create and full-update payload. Pointer fields
// distinguish "absent" from a zero value for the required-field checks.
type RecordInput struct {
	City          *string    `json:"city" validate:"required,min=1,max=100"`
	Country       *string    `json:"country" validate:"omitnil,max=100"`
	Temperature   *float64   `json:"temperature" validate:"required,gt=-1000,lt=1000"`
	Humidity      *int       `json:"humidity" validate:"required,min=0,max=100"`
	Pressure      *int       `json:"pressure" validate:"required,gt=0"`
	Description   *string    `json:"description" validate:"required,min=1,max=255"`
	WindSpeed     *float64   `json:"wind_speed" validate:"required,gte=0,lt=1000"`
	WindDirection *int       `json:"wind_direction" validate:"omitnil,min=0,max=360"`
	APISource     *string    `json:"api_source" validate:"omitnil,min=1,max=50"`
	RecordedAt    *time.Time `json:"recorded_at"`
}

// RecordPatch is the partial-update payload; only non-nil fields change.
// An explicit null for wind_direction clears it.
type RecordPatch struct {
	City          *string  `json:"city" validate:"omitnil,min=1,max=100"`
	Country       *string  `json:"country" validate:"omitnil,max=100"`
	Temperature   *float64 `json:"temperature" validate:"omitnil,gt=-1000,lt=1000"`
	Humidity      *int     `json:"humidity" validate:"omitnil,min=0,max=100"`
	Pressure      *int     `json:"pressure" validate:"omitnil,gt=0"`
	Description   *string  `json:"description" validate:"omitnil,min=1,max=255"`
	WindSpeed     *float64 `json:"wind_speed" validate:"omitnil,gte=0,lt=1000"`
	WindDirection NullInt  `json:"wind_direction"`
	APISource     *string  `json:"api_source" validate:"omitnil,min=1,max=50"`
}

// NullInt tracks whether a JSON field was present and whether it was null.
type NullInt struct {
	Set   bool
	Value *int
}

// UnmarshalJSON marks the field as present; a JSON null leaves Value nil.
func (n *NullInt) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Filter restricts a record listing or aggregate.
type Filter struct {
	// CityContains is matched case-insensitively as a substring; empty means any city.
	CityContains string
	// Since keeps records with recorded_at >= Since; zero means no lower bound.
	Since time.Time
	// Limit <= 0 means no limit.
	Limit  int
	Offset int
}

// Statistics are the aggregates over a filtered record set.
type Statistics struct {
	AvgTemperature float64 `json:"avg_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	MinTemperature float64 `json:"min_temperature"`
	AvgHumidity    float64 `json:"avg_humidity"`
	AvgPressure    float64 `json:"avg_pressure"`
	TotalRecords   int     `json:"total_records"`
}

// Record builds the stored shape from a validated input. Missing optional
// fields get their defaults; recorded_at falls back to now.
func (in RecordInput) Record(now time.Time) Record {
	rec := Record{
		City:          deref(in.City),
		Country:       deref(in.Country),
		Temperature:   RoundHundredths(derefFloat(in.Temperature)),
		Humidity:      derefInt(in.Humidity),
		Pressure:      derefInt(in.Pressure),
		Description:   deref(in.Description),
		WindSpeed:     RoundHundredths(derefFloat(in.WindSpeed)),
		WindDirection: in.WindDirection,
		RecordedAt:    now.UTC(),
		APISource:     DefaultAPISource,
	}
	if in.APISource != nil {
		rec.APISource = *in.APISource
	}
	if in.RecordedAt != nil && !in.RecordedAt.IsZero() {
		rec.RecordedAt = in.RecordedAt.UTC()
	}
	return rec
}

// ApplyTo returns rec with every field present in the patch replaced.
func (p RecordPatch) ApplyTo(rec Record) Record {
	if p.City != nil {
		rec.City = *p.City
	}
	if p.Country != nil {
		rec.Country = *p.Country
	}
	if p.Temperature != nil {
		rec.Temperature = RoundHundredths(*p.Temperature)
	}
	if p.Humidity != nil {
		rec.Humidity = *p.Humidity
	}
	if p.Pressure != nil {
		rec.Pressure = *p.Pressure
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.WindSpeed != nil {
		rec.WindSpeed = RoundHundredths(*p.WindSpeed)
	}
	if p.WindDirection.Set {
		rec.WindDirection = p.WindDirection.Value
	}
	if p.APISource != nil {
		rec.APISource = *p.APISource
	}
	return rec
}

// RoundHundredths rounds to the two fractional digits the store keeps.
func RoundHundredths(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
