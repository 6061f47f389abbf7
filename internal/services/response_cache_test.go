package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResponseCache_Lookup_MissAndHit(t *testing.T) {
	st := &fakeStore{}
	c := NewResponseCache(st, nil)
	ctx := context.Background()

	if _, ok := c.Lookup(ctx, "whatisgo"); ok {
		t.Fatalf("expected miss on empty store")
	}
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	st.add("u1", "whatisgo", "old", base, 1)
	st.add("u2", "whatisgo", "new", base.Add(time.Hour), 1)

	got, ok := c.Lookup(ctx, "whatisgo")
	if !ok || got != "new" {
		t.Fatalf("Lookup = %q, %v; want most recent answer", got, ok)
	}
}

func TestResponseCache_Lookup_StoreErrorIsMiss(t *testing.T) {
	st := &fakeStore{findErr: errBoom}
	c := NewResponseCache(st, nil)
	if _, ok := c.Lookup(context.Background(), "k"); ok {
		t.Fatalf("store failure must read as a miss")
	}
}

func TestResponseCache_MemoReadThrough(t *testing.T) {
	st := &fakeStore{}
	memo := &fakeMemo{}
	c := NewResponseCache(st, memo)
	ctx := context.Background()

	st.add("u1", "k", "stored", time.Now(), 1)
	if got, ok := c.Lookup(ctx, "k"); !ok || got != "stored" {
		t.Fatalf("Lookup = %q, %v", got, ok)
	}
	if memo.m["k"] != "stored" {
		t.Fatalf("store hit should populate memo, got %v", memo.m)
	}

	st.findErr = errBoom
	if got, ok := c.Lookup(ctx, "k"); !ok || got != "stored" {
		t.Fatalf("memo should answer without the store, got %q, %v", got, ok)
	}

	memo.getErr = errBoom
	if _, ok := c.Lookup(ctx, "k"); ok {
		t.Fatalf("memo and store failing should be a miss")
	}
}

func TestResponseCache_Record(t *testing.T) {
	st := &fakeStore{}
	memo := &fakeMemo{}
	c := NewResponseCache(st, memo)
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, canonical)

	err := c.Record(context.Background(), RecordInput{
		UserID: "u1", Username: "kari", Key: "tagx", Answer: "a", DailyLimit: 20, CountAtInsert: 3, At: at,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	rows, _ := st.ScanAll(context.Background())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.Question != "tagx" || r.AIResponse != "a" || r.CurrentCount != 3 || r.DailyLimit != 20 || r.Username != "kari" {
		t.Fatalf("unexpected row %+v", r)
	}
	if r.Timestamp != "2025-03-01T00:00:00.000000+00:00" {
		t.Fatalf("timestamp should be stored in UTC, got %q", r.Timestamp)
	}
	if memo.m["tagx"] != "a" {
		t.Fatalf("record should populate memo")
	}
}

func TestResponseCache_Record_StoreWriteError(t *testing.T) {
	st := &fakeStore{insertErr: errBoom}
	memo := &fakeMemo{}
	c := NewResponseCache(st, memo)

	err := c.Record(context.Background(), RecordInput{UserID: "u", Key: "k", Answer: "a"})
	var werr *StoreWriteError
	if !errors.As(err, &werr) || !errors.Is(err, errBoom) {
		t.Fatalf("expected StoreWriteError wrapping boom, got %v", err)
	}
	if _, ok := memo.m["k"]; ok {
		t.Fatalf("failed write must not populate memo")
	}
}
