package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

func seed(t *testing.T, st *Store, recs ...domain.RequestRecord) {
	t.Helper()
	for i := range recs {
		if err := st.Insert(context.Background(), &recs[i]); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
}

func TestStore_InsertAssignsID(t *testing.T) {
	db := newTestDB(t, &domain.RequestRecord{})
	st := NewStore(db, "")
	rec := &domain.RequestRecord{UserID: "u1", Question: "q", AIResponse: "a", Timestamp: "2025-01-01T00:00:00.000000+00:00"}
	if err := st.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(rec.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", rec.ID)
	}
}

func TestStore_FindByKey_MostRecentWins(t *testing.T) {
	db := newTestDB(t, &domain.RequestRecord{})
	st := NewStore(db, "")
	seed(t, st,
		domain.RequestRecord{UserID: "u1", Question: "karigptwhatisgo", AIResponse: "old", Timestamp: "2025-01-01T00:00:00.000000+00:00"},
		domain.RequestRecord{UserID: "u2", Question: "karigptwhatisgo", AIResponse: "new", Timestamp: "2025-01-02T00:00:00.000000+00:00"},
		domain.RequestRecord{UserID: "u1", Question: "other", AIResponse: "x", Timestamp: "2025-01-03T00:00:00.000000+00:00"},
	)

	got, err := st.FindByKey(context.Background(), "karigptwhatisgo")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if got.AIResponse != "new" {
		t.Fatalf("expected most recent answer, got %q", got.AIResponse)
	}

	_, err = st.FindByKey(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_LatestQueries(t *testing.T) {
	db := newTestDB(t, &domain.RequestRecord{})
	st := NewStore(db, "")
	seed(t, st,
		domain.RequestRecord{UserID: "u1", Question: "a", AIResponse: "1", Timestamp: "2025-01-01T10:00:00.000000+00:00", CurrentCount: 1},
		domain.RequestRecord{UserID: "u1", Question: "b", AIResponse: "2", Timestamp: "2025-01-01T11:00:00.000000+00:00", CurrentCount: 2},
		domain.RequestRecord{UserID: "u2", Question: "c", AIResponse: "3", Timestamp: "2025-01-01T12:00:00.000000+00:00", CurrentCount: 1},
	)
	ctx := context.Background()

	u1, err := st.FindLatestByUser(ctx, "u1")
	if err != nil || u1.CurrentCount != 2 {
		t.Fatalf("FindLatestByUser = %+v, %v", u1, err)
	}
	all, err := st.FindLatest(ctx)
	if err != nil || all.UserID != "u2" {
		t.Fatalf("FindLatest = %+v, %v", all, err)
	}
	if _, err := st.FindLatestByUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rows, err := st.ScanAll(ctx)
	if err != nil || len(rows) != 3 {
		t.Fatalf("ScanAll = %d rows, %v", len(rows), err)
	}
	if rows[0].AIResponse != "1" || rows[2].AIResponse != "3" {
		t.Fatalf("expected oldest first, got %+v", rows)
	}
}

func TestStore_CustomTable(t *testing.T) {
	db := newTestDB(t)
	if err := AutoMigrate(db, "oracle_requests"); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	st := NewStore(db, "oracle_requests")
	seed(t, st, domain.RequestRecord{UserID: "u", Question: "q", AIResponse: "a", Timestamp: "2025-01-01T00:00:00.000000+00:00"})

	var n int64
	if err := db.Table("oracle_requests").Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("expected row in custom table, n=%d err=%v", n, err)
	}
	if db.Migrator().HasTable(domain.DefaultRequestsTable) {
		t.Fatalf("default table should not exist")
	}
}
