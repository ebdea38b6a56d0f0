package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseDateLayout(t *testing.T) {
	got, ok := ParseDate("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDate(got) != "2024-10-10" {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseDate(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, ok := ParseDate("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestForecastDatesCrossWeekendAndMonth(t *testing.T) {
	last := time.Date(2024, 8, 30, 0, 0, 0, 0, time.UTC) // Friday
	got := ForecastDates(last, 4)
	want := []string{"2024-08-31", "2024-09-01", "2024-09-02", "2024-09-03"}
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("date %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDayRange(t *testing.T) {
	from, to := DayRange(time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC), 180)
	if !to.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", to)
	}
	if to.Sub(from) != 180*24*time.Hour {
		t.Fatalf("unexpected span %v", to.Sub(from))
	}
}
