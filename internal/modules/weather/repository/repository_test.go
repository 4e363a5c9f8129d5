package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"weathervision/internal/migrate"
	"weathervision/internal/modules/weather/types"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// One connection so every statement sees the same in-memory database.
	db.SetMaxOpenConns(1)
	if err := migrate.Run(context.Background(), db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			t.Fatalf("close db: %v", closeErr)
		}
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Fatalf("close db: %v", closeErr)
		}
	})
	return db
}

func intPtr(v int) *int { return &v }

func sample(city string, temp float64, at time.Time) types.Record {
	return types.Record{
		City:        city,
		Country:     "GB",
		Temperature: temp,
		Humidity:    70,
		Pressure:    1010,
		Description: "clear sky",
		WindSpeed:   3.5,
		RecordedAt:  at,
		APISource:   types.DefaultAPISource,
	}
}

func mustCreate(t *testing.T, repo WeatherRepository, rec types.Record) types.Record {
	t.Helper()
	got, err := repo.Create(context.Background(), rec)
	if err != nil {
		t.Fatalf("Create(%s): %v", rec.City, err)
	}
	return got
}

func TestNewRepository(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	if repo == nil {
		t.Fatal("NewRepository returned nil")
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	at := time.Date(2025, 2, 3, 14, 30, 15, 123456789, time.FixedZone("CET", 3600))

	in := sample("London", 12.346, at)
	in.WindDirection = intPtr(250)
	created := mustCreate(t, repo, in)

	if created.ID <= 0 {
		t.Fatalf("ID = %d; want > 0", created.ID)
	}
	if created.Temperature != 12.35 {
		t.Errorf("Temperature = %v; want 12.35", created.Temperature)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.City != created.City || got.Country != created.Country || got.Temperature != created.Temperature ||
		got.Humidity != created.Humidity || got.Pressure != created.Pressure || got.Description != created.Description ||
		got.WindSpeed != created.WindSpeed || got.APISource != created.APISource {
		t.Errorf("GetByID = %+v; want %+v", got, created)
	}
	if got.WindDirection == nil || *got.WindDirection != 250 {
		t.Errorf("WindDirection = %v; want 250", got.WindDirection)
	}
	if !got.RecordedAt.Equal(created.RecordedAt) {
		t.Errorf("RecordedAt = %v; want %v", got.RecordedAt, created.RecordedAt)
	}
	if got.RecordedAt.Nanosecond()%1000 != 0 {
		t.Errorf("RecordedAt not truncated to microseconds: %v", got.RecordedAt)
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	now := time.Now()

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		rec := mustCreate(t, repo, sample("Paris", float64(i), now))
		if seen[rec.ID] {
			t.Fatalf("duplicate id %d", rec.ID)
		}
		seen[rec.ID] = true
	}
}

func TestCreate_NullWindDirectionAndDefaultTime(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	before := time.Now().UTC().Add(-time.Second)

	rec := sample("Oslo", 1, time.Time{})
	created := mustCreate(t, repo, rec)

	got, err := repo.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.WindDirection != nil {
		t.Errorf("WindDirection = %d; want nil", *got.WindDirection)
	}
	if got.RecordedAt.Before(before) {
		t.Errorf("RecordedAt = %v; want set to now", got.RecordedAt)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID(404) err = %v; want ErrNotFound", err)
	}
}

func TestList_OrderingAndPaging(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a := mustCreate(t, repo, sample("A", 1, base))
	b := mustCreate(t, repo, sample("B", 2, base.Add(2*time.Hour)))
	c := mustCreate(t, repo, sample("C", 3, base.Add(time.Hour)))
	// Same timestamp as b: id breaks the tie.
	d := mustCreate(t, repo, sample("D", 4, base.Add(2*time.Hour)))

	got, err := repo.List(ctx, types.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []int64{d.ID, b.ID, c.ID, a.ID}
	if len(got) != len(want) {
		t.Fatalf("List returned %d records; want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("List[%d].ID = %d; want %d", i, got[i].ID, id)
		}
	}

	page, err := repo.List(ctx, types.Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List(page): %v", err)
	}
	if len(page) != 2 || page[0].ID != b.ID || page[1].ID != c.ID {
		t.Errorf("List(limit=2, offset=1) = %v; want [%d %d]", ids(page), b.ID, c.ID)
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	got, err := repo.List(context.Background(), types.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List on empty store = %v; want empty non-nil slice", got)
	}
}

func TestList_CityContainsCaseInsensitive(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	london := mustCreate(t, repo, sample("London", 1, now))
	londontown := mustCreate(t, repo, sample("Londontown", 2, now.Add(time.Second)))
	mustCreate(t, repo, sample("Paris", 3, now))
	mustCreate(t, repo, sample("Lo_don", 4, now))

	got, err := repo.List(ctx, types.Filter{CityContains: "LON"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != londontown.ID || got[1].ID != london.ID {
		t.Errorf("List(city=LON) = %v; want [%d %d]", ids(got), londontown.ID, london.ID)
	}

	// Wildcards in the needle match literally.
	got, err = repo.List(ctx, types.Filter{CityContains: "o_d"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].City != "Lo_don" {
		t.Errorf("List(city=o_d) = %v; want only Lo_don", got)
	}

	got, err = repo.List(ctx, types.Filter{CityContains: "%"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List(city=%%) returned %d records; want 0", len(got))
	}
}

func TestList_Since(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	now := time.Now().UTC()

	mustCreate(t, repo, sample("Old", 1, now.Add(-72*time.Hour)))
	recent := mustCreate(t, repo, sample("Recent", 2, now.Add(-time.Hour)))

	got, err := repo.List(context.Background(), types.Filter{Since: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != recent.ID {
		t.Errorf("List(since=24h) = %v; want [%d]", ids(got), recent.ID)
	}
}

func TestLatest(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	got, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest on empty store: %v", err)
	}
	if got != nil {
		t.Fatalf("Latest on empty store = %+v; want nil", got)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := mustCreate(t, repo, sample("Rome", 25, at))
	got, err = repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("Latest = %+v; want id %d", got, first.ID)
	}

	tie := mustCreate(t, repo, sample("Milan", 22, at))
	mustCreate(t, repo, sample("Turin", 20, at.Add(-time.Minute)))
	got, err = repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got == nil || got.ID != tie.ID {
		t.Errorf("Latest = %+v; want tie broken by highest id %d", got, tie.ID)
	}
}

func TestUpdate(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	at := time.Date(2025, 4, 4, 4, 4, 4, 0, time.UTC)

	created := mustCreate(t, repo, sample("Berlin", 10, at))
	changed := created
	changed.City = "Berlin-Mitte"
	changed.Temperature = 11.111
	changed.WindDirection = intPtr(45)
	changed.RecordedAt = at.Add(time.Hour)

	got, err := repo.Update(ctx, changed)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.City != "Berlin-Mitte" || got.Temperature != 11.11 || got.WindDirection == nil || *got.WindDirection != 45 {
		t.Errorf("Update = %+v", got)
	}
	if !got.RecordedAt.Equal(at) {
		t.Errorf("RecordedAt = %v; want unchanged %v", got.RecordedAt, at)
	}

	changed.ID = created.ID + 100
	if _, err := repo.Update(ctx, changed); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) err = %v; want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	created := mustCreate(t, repo, sample("Madrid", 30, time.Now()))
	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete err = %v; want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v; want ErrNotFound", err)
	}
}

func TestAggregate(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	p1 := sample("Paris", 10, now.Add(-time.Hour))
	p1.Humidity, p1.Pressure = 60, 1000
	p2 := sample("Paris", 20, now.Add(-2*time.Hour))
	p2.Humidity, p2.Pressure = 80, 1020
	old := sample("Paris", -5, now.Add(-10*24*time.Hour))
	mustCreate(t, repo, p1)
	mustCreate(t, repo, p2)
	mustCreate(t, repo, old)
	mustCreate(t, repo, sample("London", 100, now))

	t.Run("city and window", func(t *testing.T) {
		got, err := repo.Aggregate(ctx, types.Filter{CityContains: "paris", Since: now.Add(-7 * 24 * time.Hour)})
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		want := types.Statistics{AvgTemperature: 15, MaxTemperature: 20, MinTemperature: 10, AvgHumidity: 70, AvgPressure: 1010, TotalRecords: 2}
		if got != want {
			t.Errorf("Aggregate = %+v; want %+v", got, want)
		}
	})

	t.Run("city only", func(t *testing.T) {
		got, err := repo.Aggregate(ctx, types.Filter{CityContains: "Paris"})
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if got.TotalRecords != 3 || got.MinTemperature != -5 {
			t.Errorf("Aggregate = %+v; want 3 records with min -5", got)
		}
	})

	t.Run("empty set", func(t *testing.T) {
		got, err := repo.Aggregate(ctx, types.Filter{CityContains: "Atlantis"})
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if got != (types.Statistics{}) {
			t.Errorf("Aggregate(empty) = %+v; want zero value", got)
		}
	})
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"London": "London",
		"50%":    `50\%`,
		"a_b":    `a\_b`,
		`c:\x`:   `c:\\x`,
	}
	for in, want := range tests {
		if got := EscapeLike(in); got != want {
			t.Errorf("EscapeLike(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 2, 3, 14, 30, 0, 500000000, time.UTC)
	for _, in := range []string{"2025-02-03T14:30:00.500000Z", "2025-02-03T15:30:00.5+01:00"} {
		got, err := parseTimestamp(in)
		if err != nil {
			t.Fatalf("parseTimestamp(%q): %v", in, err)
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Errorf("parseTimestamp(%q) = %v; want %v UTC", in, got, want)
		}
	}
	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Error("parseTimestamp(yesterday) = nil error; want error")
	}
}

func ids(recs []types.Record) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
