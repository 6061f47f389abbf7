package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

func TestGetReceipt_BlankKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.EventReceipt{})
	rec, err := GetReceipt(context.Background(), db, "http", "   ", time.Now().UTC())
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetReceipt_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.EventReceipt{})
	now := time.Now().UTC()

	exp := &domain.EventReceipt{
		ID:        "expired",
		Source:    "http",
		Key:       "k1",
		Outcome:   "answered",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	if rec, err := GetReceipt(context.Background(), db, "http", "k1", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}
	if rec, err := GetReceipt(context.Background(), db, "http", "missing", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec, err)
	}
}

func TestCreateReceipt_SuccessAndDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.EventReceipt{})
	ttl := 90 * time.Minute
	start := time.Now().UTC()

	rec, err := CreateReceipt(context.Background(), db, "http", "k9", "answered", ttl)
	if err != nil {
		t.Fatalf("CreateReceipt error: %v", err)
	}
	if rec == nil || rec.ID == "" || rec.Source != "http" || rec.Key != "k9" || rec.Outcome != "answered" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	if _, err := CreateReceipt(context.Background(), db, "http", "k9", "ignored", ttl); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same key from another source is independent.
	if _, err := CreateReceipt(context.Background(), db, "discord", "k9", "answered", ttl); err != nil {
		t.Fatalf("other source: %v", err)
	}
}

func TestCreateReceipt_ReplacesExpired(t *testing.T) {
	db := newTestDB(t, &domain.EventReceipt{})
	now := time.Now().UTC()
	old := &domain.EventReceipt{ID: "old", Source: "http", Key: "k", Outcome: "answered", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := CreateReceipt(context.Background(), db, "http", "k", "answered", time.Hour); err != nil {
		t.Fatalf("expected expired receipt to be replaced, got %v", err)
	}
}

func TestCreateReceipt_Error_NoTable(t *testing.T) {
	db := newTestDB(t) // intentionally NOT migrating event_receipts
	_, err := CreateReceipt(context.Background(), db, "http", "kX", "answered", time.Minute)
	if err == nil {
		t.Fatalf("expected error when table is missing")
	}
	if err == ErrDuplicate {
		t.Fatalf("expected non-duplicate error, got ErrDuplicate")
	}
}

func TestReceipts_SeenAndMark(t *testing.T) {
	db := newTestDB(t, &domain.EventReceipt{})
	r := Receipts{DB: db}
	ctx := context.Background()

	seen, err := r.Seen(ctx, "http", "abc")
	if err != nil || seen {
		t.Fatalf("expected unseen, got seen=%v err=%v", seen, err)
	}
	if err := r.Mark(ctx, "http", "abc", "answered", time.Hour); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	seen, err = r.Seen(ctx, "http", "abc")
	if err != nil || !seen {
		t.Fatalf("expected seen, got seen=%v err=%v", seen, err)
	}
	if err := r.Mark(ctx, "http", "abc", "answered", time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
