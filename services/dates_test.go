package services

import (
	"testing"
	"time"

	"Gin_postgres_redis_loan_tracker/testfixtures"

	"github.com/shopspring/decimal"
)

func TestDaysLate(t *testing.T) {
	due := testfixtures.Date(2025, time.January, 15)
	cases := []struct {
		name  string
		today time.Time
		want  int
	}{
		{"before due", testfixtures.Date(2025, time.January, 10), 0},
		{"on due date", due, 0},
		{"one day late", testfixtures.Date(2025, time.January, 16), 1},
		{"ten days late", testfixtures.Date(2025, time.January, 25), 10},
		{"time of day ignored", time.Date(2025, time.January, 16, 23, 59, 0, 0, time.UTC), 1},
		{"across month", testfixtures.Date(2025, time.February, 1), 17},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DaysLate(due, tc.today); got != tc.want {
				t.Fatalf("DaysLate = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestLateFine(t *testing.T) {
	rate := decimal.RequireFromString("5.00")
	if got := LateFine(0, rate); !got.IsZero() {
		t.Fatalf("zero days: got %s", got)
	}
	if got := LateFine(-3, rate); !got.IsZero() {
		t.Fatalf("negative days: got %s", got)
	}
	if got := LateFine(10, rate); got.StringFixed(2) != "50.00" {
		t.Fatalf("ten days: got %s", got.StringFixed(2))
	}
	if got := LateFine(3, decimal.RequireFromString("0.333")); got.StringFixed(2) != "1.00" {
		t.Fatalf("rounding: got %s", got.StringFixed(2))
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-01-15 ")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !d.Equal(testfixtures.Date(2025, time.January, 15)) {
		t.Fatalf("got %v", d)
	}
	if _, err := ParseDate("15/01/2025"); err == nil {
		t.Fatal("expected error for non ISO date")
	}
}

func TestCivilDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 2025-01-11 02:00 +08:00 is still 2025-01-10 in UTC
	got := CivilDate(time.Date(2025, time.January, 11, 2, 0, 0, 0, loc))
	if !got.Equal(testfixtures.Date(2025, time.January, 10)) {
		t.Fatalf("got %v", got)
	}
}
