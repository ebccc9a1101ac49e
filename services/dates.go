package services

import (
	"Gin_postgres_redis_loan_tracker/models"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDailyFine is charged per whole day a loan is returned late.
var DefaultDailyFine = decimal.RequireFromString("5.00")

// CivilDate truncates t to midnight UTC of its UTC calendar day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(models.DateLayout, strings.TrimSpace(s))
}

// DaysLate is the number of whole days today is past due, never negative.
func DaysLate(due, today time.Time) int {
	days := int(CivilDate(today).Sub(CivilDate(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// LateFine is days × rate rounded to cents.
func LateFine(days int, rate decimal.Decimal) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(days))).Round(2)
}
