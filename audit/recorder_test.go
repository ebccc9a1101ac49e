package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"Gin_postgres_redis_loan_tracker/models"
)

type memStore struct {
	err     error
	entries []models.AuditLog
	limit   int
}

func (s *memStore) CreateAuditLog(_ context.Context, l *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, *l)
	return nil
}

func (s *memStore) ListAuditLogs(_ context.Context, limit int) ([]models.AuditLog, error) {
	s.limit = limit
	return s.entries, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRecordWritesDetails(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, quiet())

	r.Record(context.Background(), models.AuditCreate, models.LoanTable, "loan-1", map[string]any{"actor_id": "u-1"})

	if len(store.entries) != 1 {
		t.Fatalf("entries = %d", len(store.entries))
	}
	e := store.entries[0]
	if e.Action != models.AuditCreate || e.Table != models.LoanTable || e.RecordID != "loan-1" {
		t.Fatalf("entry = %+v", e)
	}
	var details map[string]string
	if err := json.Unmarshal(e.Details, &details); err != nil {
		t.Fatalf("details not JSON: %v", err)
	}
	if details["actor_id"] != "u-1" {
		t.Fatalf("details = %v", details)
	}
}

func TestRecordSwallowsFailures(t *testing.T) {
	r := NewRecorder(&memStore{err: errors.New("disk full")}, quiet())
	// must not panic or propagate
	r.Record(context.Background(), models.AuditDelete, models.StudentTable, "s-1", nil)

	r = NewRecorder(&memStore{}, quiet())
	r.Record(context.Background(), models.AuditUpdate, models.StudentTable, "s-1", map[string]any{"bad": make(chan int)})
}

func TestRecentClampsLimit(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, quiet())
	for _, tc := range []struct{ in, want int }{{0, 100}, {5000, 100}, {25, 25}} {
		if _, err := r.Recent(context.Background(), tc.in); err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if store.limit != tc.want {
			t.Fatalf("Recent(%d) used limit %d, want %d", tc.in, store.limit, tc.want)
		}
	}
}
