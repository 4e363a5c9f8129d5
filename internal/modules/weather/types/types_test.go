package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestRecordInput_Record(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	t.Run("defaults", func(t *testing.T) {
		in := RecordInput{
			City:        ptr("London"),
			Temperature: ptr(12.346),
			Humidity:    ptr(81),
			Pressure:    ptr(1013),
			Description: ptr("overcast clouds"),
			WindSpeed:   ptr(4.126),
		}
		rec := in.Record(now)

		if rec.APISource != DefaultAPISource {
			t.Errorf("APISource = %q; want %q", rec.APISource, DefaultAPISource)
		}
		if rec.Country != "" {
			t.Errorf("Country = %q; want empty", rec.Country)
		}
		if rec.WindDirection != nil {
			t.Errorf("WindDirection = %v; want nil", *rec.WindDirection)
		}
		if rec.Temperature != 12.35 || rec.WindSpeed != 4.13 {
			t.Errorf("rounding = (%v, %v); want (12.35, 4.13)", rec.Temperature, rec.WindSpeed)
		}
		if !rec.RecordedAt.Equal(now) || rec.RecordedAt.Location() != time.UTC {
			t.Errorf("RecordedAt = %v; want %v in UTC", rec.RecordedAt, now)
		}
	})

	t.Run("explicit recorded_at and source kept", func(t *testing.T) {
		at := time.Date(2024, 12, 24, 18, 0, 0, 0, time.UTC)
		in := RecordInput{City: ptr("Oslo"), RecordedAt: &at, APISource: ptr("station-7"), WindDirection: ptr(270)}
		rec := in.Record(now)

		if !rec.RecordedAt.Equal(at) {
			t.Errorf("RecordedAt = %v; want %v", rec.RecordedAt, at)
		}
		if rec.APISource != "station-7" {
			t.Errorf("APISource = %q", rec.APISource)
		}
		if rec.WindDirection == nil || *rec.WindDirection != 270 {
			t.Errorf("WindDirection = %v; want 270", rec.WindDirection)
		}
	})
}

func TestRecordPatch_ApplyTo(t *testing.T) {
	base := Record{ID: 3, City: "Paris", Temperature: 10, Humidity: 50, WindDirection: ptr(90), APISource: "openweathermap"}

	var patch RecordPatch
	if err := json.Unmarshal([]byte(`{"temperature": 21.456, "wind_direction": null}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := patch.ApplyTo(base)

	if got.Temperature != 21.46 {
		t.Errorf("Temperature = %v; want 21.46", got.Temperature)
	}
	if got.WindDirection != nil {
		t.Errorf("WindDirection = %v; want nil after explicit null", *got.WindDirection)
	}
	if got.City != "Paris" || got.Humidity != 50 || got.ID != 3 {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestNullInt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantSet bool
		want    *int
		wantErr bool
	}{
		{name: "absent", body: `{}`, wantSet: false},
		{name: "null", body: `{"wind_direction": null}`, wantSet: true},
		{name: "value", body: `{"wind_direction": 180}`, wantSet: true, want: ptr(180)},
		{name: "wrong type", body: `{"wind_direction": "north"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p RecordPatch
			err := json.Unmarshal([]byte(tt.body), &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v; wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.WindDirection.Set != tt.wantSet {
				t.Errorf("Set = %v; want %v", p.WindDirection.Set, tt.wantSet)
			}
			switch {
			case tt.want == nil && p.WindDirection.Value != nil:
				t.Errorf("Value = %d; want nil", *p.WindDirection.Value)
			case tt.want != nil && (p.WindDirection.Value == nil || *p.WindDirection.Value != *tt.want):
				t.Errorf("Value = %v; want %d", p.WindDirection.Value, *tt.want)
			}
		})
	}
}

func TestNullInt_TypeErrorNamesField(t *testing.T) {
	var p RecordPatch
	err := json.Unmarshal([]byte(`{"wind_direction": "abc"}`), &p)

	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("err = %v; want *json.UnmarshalTypeError", err)
	}
	if typeErr.Field != "wind_direction" {
		t.Errorf("Field = %q; want wind_direction", typeErr.Field)
	}
}

func TestRecord_JSONNullWindDirection(t *testing.T) {
	b, err := json.Marshal(Record{City: "Rome"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, ok := m["wind_direction"]
	if !ok || v != nil {
		t.Errorf("wind_direction = %v (present %v); want explicit null", v, ok)
	}
}
