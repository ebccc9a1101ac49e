package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"Gin_postgres_redis_loan_tracker/models"
	"Gin_postgres_redis_loan_tracker/testfixtures"

	"github.com/shopspring/decimal"
)

func newDamageService(t *testing.T) (*Damage, *memStore, *testfixtures.Clock) {
	t.Helper()
	store := newMemStore()
	store.addStudent("stu-1", "ana@example.edu")
	store.addEquipment("eq-1", "Drone")
	clock := testfixtures.NewClock(time.Time{})
	return NewDamage(store, &stubAuditor{}, clock.NowFunc(), quietLogger()), store, clock
}

func TestDamageCreate(t *testing.T) {
	t.Run("damage marks condition", func(t *testing.T) {
		svc, store, _ := newDamageService(t)
		cost := decimal.RequireFromString("80")
		dl, err := svc.Create(context.Background(), CreateDamageParams{
			EquipmentID: "eq-1",
			StudentID:   "stu-1",
			DamageType:  "Damage",
			Description: "cracked propeller",
			ReportedBy:  "desk",
			RepairCost:  &cost,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if dl.Status != models.DamageOpen || !dl.RepairCost.Valid || dl.ReplacementCost.Valid {
			t.Fatalf("damage log = %+v", dl)
		}
		eq := store.equipmentState("eq-1")
		if eq.Condition != models.ConditionDamaged || eq.AvailabilityStatus != models.Available {
			t.Fatalf("equipment = %+v", eq)
		}
	})

	t.Run("lost marks equipment lost", func(t *testing.T) {
		svc, store, _ := newDamageService(t)
		_, err := svc.Create(context.Background(), CreateDamageParams{
			EquipmentID: "eq-1",
			StudentID:   "stu-1",
			DamageType:  "Lost",
			Description: "never came back",
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		eq := store.equipmentState("eq-1")
		if eq.AvailabilityStatus != models.Lost || eq.Condition != models.ConditionLost {
			t.Fatalf("equipment = %+v", eq)
		}
	})

	t.Run("validation", func(t *testing.T) {
		svc, _, _ := newDamageService(t)
		neg := decimal.NewFromInt(-5)
		_, err := svc.Create(context.Background(), CreateDamageParams{
			EquipmentID:     "eq-1",
			StudentID:       "stu-1",
			DamageType:      "Scratched",
			ReplacementCost: &neg,
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
		for _, field := range []string{"damage_type", "description", "replacement_cost"} {
			if _, ok := verr.FieldErrors[field]; !ok {
				t.Errorf("missing field error %s in %v", field, verr.FieldErrors)
			}
		}
	})

	t.Run("unknown loan", func(t *testing.T) {
		svc, _, _ := newDamageService(t)
		_, err := svc.Create(context.Background(), CreateDamageParams{
			EquipmentID: "eq-1",
			StudentID:   "stu-1",
			LoanID:      "loan-404",
			DamageType:  "Damage",
			Description: "dent",
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestDamageResolveStampsOnce(t *testing.T) {
	svc, _, clock := newDamageService(t)
	dl, err := svc.Create(context.Background(), CreateDamageParams{
		EquipmentID: "eq-1",
		StudentID:   "stu-1",
		DamageType:  "Damage",
		Description: "scratched lens",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resolved := string(models.DamageResolved)
	first, err := svc.Update(context.Background(), UpdateDamageParams{ID: dl.ID, Status: &resolved})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if first.ResolvedAt == nil || !first.ResolvedAt.Equal(clock.Now()) {
		t.Fatalf("resolved_at = %v", first.ResolvedAt)
	}
	stamp := *first.ResolvedAt

	clock.AdvanceDays(3)
	second, err := svc.Update(context.Background(), UpdateDamageParams{ID: dl.ID, Status: &resolved})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !second.ResolvedAt.Equal(stamp) {
		t.Fatalf("resolved_at moved from %v to %v", stamp, second.ResolvedAt)
	}

	bad := "Closed"
	if _, err := svc.Update(context.Background(), UpdateDamageParams{ID: dl.ID, Status: &bad}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := svc.Update(context.Background(), UpdateDamageParams{ID: "missing", Status: &resolved}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
}
