package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

func TestSummarize_Empty(t *testing.T) {
	m := &MetricsAggregator{Store: &fakeStore{}, Location: canonical}
	s, err := m.Summarize(context.Background(), time.Now())
	if err != nil || !s.Empty {
		t.Fatalf("expected empty summary, got %+v, %v", s, err)
	}
}

func TestSummarize_StoreError(t *testing.T) {
	m := &MetricsAggregator{Store: &fakeStore{scanErr: errBoom}, Location: canonical}
	if _, err := m.Summarize(context.Background(), time.Now()); !errors.Is(err, errBoom) {
		t.Fatalf("expected scan error, got %v", err)
	}
}

func TestSummarize_Figures(t *testing.T) {
	st := &fakeStore{}
	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, canonical)
	day2 := time.Date(2025, 3, 2, 10, 0, 0, 0, canonical)
	day3 := time.Date(2025, 3, 3, 10, 0, 0, 0, canonical)

	// u1: 3 on day1, 1 on day3. u2: 1 on day2, 2 on day3.
	st.add("u1", "a", "x", day1, 1)
	st.add("u1", "b", "x", day1.Add(time.Minute), 2)
	st.add("u1", "c", "x", day1.Add(2*time.Minute), 3)
	st.add("u2", "d", "x", day2, 1)
	st.add("u1", "e", "x", day3, 1)
	st.add("u2", "f", "x", day3.Add(time.Minute), 1)
	st.add("u2", "g", "x", day3.Add(2*time.Minute), 2)
	// 20:30 UTC on Mar 2 is 04:30 on Mar 3 in UTC+8.
	st.recs = append(st.recs, domain.RequestRecord{ID: "late", UserID: "u2", Username: "name-u2", Timestamp: "2025-03-02T20:30:00Z"})
	st.recs = append(st.recs, domain.RequestRecord{ID: "bad", UserID: "u3", Timestamp: "garbage"})

	m := &MetricsAggregator{Store: st, Location: canonical}
	s, err := m.Summarize(context.Background(), day3.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Empty || s.Skipped != 1 {
		t.Fatalf("unexpected empty/skipped: %+v", s)
	}
	if s.Total != 8 || s.MaxPerDay != 4 || s.AvgPerDay != 2.67 {
		t.Fatalf("global = total %d max %d avg %v", s.Total, s.MaxPerDay, s.AvgPerDay)
	}
	if len(s.PerUser) != 2 {
		t.Fatalf("per user = %+v", s.PerUser)
	}
	u1, u2 := s.PerUser[0], s.PerUser[1]
	if u1.UserID != "u1" || u1.Total != 4 || u1.MaxPerDay != 3 || u1.AvgPerDay != 2 {
		t.Fatalf("u1 = %+v", u1)
	}
	if u2.UserID != "u2" || u2.Total != 4 || u2.MaxPerDay != 3 || u2.AvgPerDay != 2 || u2.Username != "name-u2" {
		t.Fatalf("u2 = %+v", u2)
	}
	if s.Today.Date != "2025-03-03" || s.Today.Total != 4 {
		t.Fatalf("today = %+v", s.Today)
	}
	if len(s.Today.PerUser) != 2 || s.Today.PerUser[0].UserID != "u2" || s.Today.PerUser[0].Count != 3 || s.Today.PerUser[1].Count != 1 {
		t.Fatalf("today per user = %+v", s.Today.PerUser)
	}
}

func TestSummarize_AllCorrupt(t *testing.T) {
	st := &fakeStore{recs: []domain.RequestRecord{{ID: "1", Timestamp: "x"}, {ID: "2", Timestamp: ""}}}
	m := &MetricsAggregator{Store: st}
	s, err := m.Summarize(context.Background(), time.Now())
	if err != nil || s.Empty || s.Total != 0 || s.Skipped != 2 {
		t.Fatalf("unexpected %+v, %v", s, err)
	}
}
