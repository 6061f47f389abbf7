// Package services – QuotaTracker
//
// QuotaTracker decides admission from the subject's most recent record:
// day rollover first, then the cooldown, then the daily limit. All calendar
// arithmetic happens in one fixed canonical offset.

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

// Scope selects whose last record drives the counter.
type Scope int

const (
	// ScopeUser keys the counter by user ID.
	ScopeUser Scope = iota
	// ScopeGlobal shares one counter across every user.
	ScopeGlobal
)

const (
	DefaultDailyLimit = 20
	DefaultCooldown   = 120 * time.Second
)

// QuotaTracker evaluates cooldown and daily-limit rules.
type QuotaTracker struct {
	Store    RecordStore
	Limit    int
	Cooldown time.Duration
	Location *time.Location
	Scope    Scope
	Log      zerolog.Logger
}

// NewQuotaTracker applies defaults for non-positive limit and cooldown and
// UTC for a nil location.
func NewQuotaTracker(store RecordStore, limit int, cooldown time.Duration, loc *time.Location, scope Scope) *QuotaTracker {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaTracker{
		Store:    store,
		Limit:    limit,
		Cooldown: cooldown,
		Location: loc,
		Scope:    scope,
		Log:      log.With().Str("component", "quota").Logger(),
	}
}

// Decision is the result of one evaluation.
type Decision struct {
	// Count is the effective running count before this request.
	Count int
	Limit int
	// ResetIn is the time until the next local midnight.
	ResetIn time.Duration
}

// Remaining returns the requests left today, never negative.
func (d Decision) Remaining() int {
	if n := d.Limit - d.Count; n > 0 {
		return n
	}
	return 0
}

// Status is the read-only daily view for one subject.
type Status struct {
	Used      int           `json:"used"`
	Remaining int           `json:"remaining"`
	Limit     int           `json:"limit"`
	ResetIn   time.Duration `json:"reset_in_ns"`
}

// Evaluate admits or rejects a request at now. Rejections are returned as
// *CooldownError or *QuotaExceededError alongside a populated Decision.
func (q *QuotaTracker) Evaluate(ctx context.Context, userID string, now time.Time) (Decision, error) {
	ctx, span := otel.Tracer("services/QuotaTracker").Start(ctx, "Evaluate",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	now = now.In(q.Location)
	d := Decision{Limit: q.Limit, ResetIn: NextMidnight(now, q.Location).Sub(now)}

	count, last, ok := q.lastState(ctx, userID, now)
	d.Count = count
	span.SetAttributes(attribute.Int("quota.count", count))

	if ok {
		elapsed := now.Sub(last)
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed < q.Cooldown {
			return d, &CooldownError{Remaining: ceilSecond(q.Cooldown - elapsed)}
		}
	}
	if count >= q.Limit {
		return d, &QuotaExceededError{Limit: q.Limit, ResetIn: d.ResetIn}
	}
	return d, nil
}

// Status reports used and remaining requests for today without admitting.
func (q *QuotaTracker) Status(ctx context.Context, userID string, now time.Time) Status {
	now = now.In(q.Location)
	count, _, _ := q.lastState(ctx, userID, now)
	d := Decision{Count: count, Limit: q.Limit}
	return Status{
		Used:      count,
		Remaining: d.Remaining(),
		Limit:     q.Limit,
		ResetIn:   NextMidnight(now, q.Location).Sub(now),
	}
}

// lastState returns the effective count and, when a same-day record exists,
// its instant. Missing, unreadable and corrupt records all read as absent.
func (q *QuotaTracker) lastState(ctx context.Context, userID string, now time.Time) (count int, at time.Time, sameDay bool) {
	var (
		rec *domain.RequestRecord
		err error
	)
	if q.Scope == ScopeGlobal {
		rec, err = absent(q.Store.FindLatest(ctx))
	} else {
		rec, err = absent(q.Store.FindLatestByUser(ctx, userID))
	}
	if err != nil {
		q.Log.Error().Err(err).Str("user_id", userID).Msg("last request lookup failed; treating as absent")
		return 0, time.Time{}, false
	}
	if rec == nil {
		return 0, time.Time{}, false
	}
	ts, err := rec.Time()
	if err != nil {
		q.Log.Warn().Str("id", rec.ID).Str("timestamp", rec.Timestamp).Msg("corrupt timestamp; treating as absent")
		return 0, time.Time{}, false
	}
	ts = ts.In(q.Location)
	if DayStart(ts, q.Location).Before(DayStart(now, q.Location)) {
		return 0, time.Time{}, false
	}
	if rec.CurrentCount > 0 {
		count = rec.CurrentCount
	}
	return count, ts, true
}

// DayStart returns local midnight of t's calendar date in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight returns the local midnight that ends t's calendar date.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	return DayStart(t, loc).AddDate(0, 0, 1)
}

func ceilSecond(d time.Duration) time.Duration {
	s := (d + time.Second - 1) / time.Second * time.Second
	if s < time.Second {
		return time.Second
	}
	return s
}
