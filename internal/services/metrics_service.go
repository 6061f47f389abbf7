// Package services – MetricsAggregator
//
// MetricsAggregator derives usage statistics from a full scan of the store.
// Days are local calendar dates in the canonical offset. Records with an
// unparseable timestamp are excluded from every figure and counted in
// Summary.Skipped.

package services

import (
	"context"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// EmptySummaryText is shown when the store holds no records.
const EmptySummaryText = "No requests found in the database."

// UserStats are the per-user totals.
type UserStats struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Total     int     `json:"total_requests"`
	AvgPerDay float64 `json:"average_per_day"`
	MaxPerDay int     `json:"max_requests_per_day"`
}

// UserCount is one user's request count for a single day.
type UserCount struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// TodayStats is the breakdown for the current local date.
type TodayStats struct {
	Date    string      `json:"date"`
	Total   int         `json:"total_requests_today"`
	PerUser []UserCount `json:"requests_per_user_today"`
}

// Summary is the aggregate view over every stored record.
type Summary struct {
	Empty     bool        `json:"empty"`
	Total     int         `json:"total_requests"`
	AvgPerDay float64     `json:"average_requests_per_day"`
	MaxPerDay int         `json:"max_requests_per_day"`
	PerUser   []UserStats `json:"per_user"`
	Today     TodayStats  `json:"today"`
	Skipped   int         `json:"skipped"`
}

// MetricsAggregator computes Summary on demand. It has no side effects.
type MetricsAggregator struct {
	Store    RecordStore
	Location *time.Location
}

type userAcc struct {
	name  string
	total int
	days  map[string]int
}

// Summarize scans the store and aggregates relative to now.
func (m *MetricsAggregator) Summarize(ctx context.Context, now time.Time) (Summary, error) {
	ctx, span := otel.Tracer("services/MetricsAggregator").Start(ctx, "Summarize")
	defer span.End()

	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}
	rows, err := m.Store.ScanAll(ctx)
	if err != nil {
		span.RecordError(err)
		return Summary{}, err
	}
	span.SetAttributes(attribute.Int("metrics.rows", len(rows)))
	if len(rows) == 0 {
		return Summary{Empty: true}, nil
	}

	today := now.In(loc).Format(time.DateOnly)
	var (
		s       Summary
		byDay   = map[string]int{}
		byUser  = map[string]*userAcc{}
		order   []string
		todayBy = map[string]int{}
	)
	s.Today.Date = today
	for _, r := range rows {
		ts, err := r.Time()
		if err != nil {
			s.Skipped++
			continue
		}
		day := ts.In(loc).Format(time.DateOnly)
		s.Total++
		byDay[day]++

		u, ok := byUser[r.UserID]
		if !ok {
			u = &userAcc{days: map[string]int{}}
			byUser[r.UserID] = u
			order = append(order, r.UserID)
		}
		if r.Username != "" {
			u.name = r.Username
		}
		u.total++
		u.days[day]++

		if day == today {
			s.Today.Total++
			todayBy[r.UserID]++
		}
	}
	span.SetAttributes(attribute.Int("metrics.skipped", s.Skipped))
	if s.Total == 0 {
		return s, nil
	}

	s.AvgPerDay = round2(float64(s.Total) / float64(len(byDay)))
	s.MaxPerDay = maxOf(byDay)

	for _, id := range order {
		u := byUser[id]
		s.PerUser = append(s.PerUser, UserStats{
			UserID:    id,
			Username:  u.name,
			Total:     u.total,
			AvgPerDay: round2(float64(u.total) / float64(len(u.days))),
			MaxPerDay: maxOf(u.days),
		})
		if n := todayBy[id]; n > 0 {
			s.Today.PerUser = append(s.Today.PerUser, UserCount{UserID: id, Username: u.name, Count: n})
		}
	}
	sort.SliceStable(s.PerUser, func(i, j int) bool { return s.PerUser[i].Total > s.PerUser[j].Total })
	sort.SliceStable(s.Today.PerUser, func(i, j int) bool { return s.Today.PerUser[i].Count > s.Today.PerUser[j].Count })
	return s, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func maxOf(m map[string]int) int {
	best := 0
	for _, v := range m {
		if v > best {
			best = v
		}
	}
	return best
}
