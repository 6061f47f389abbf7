// Package services – ResponseCache
//
// ResponseCache is the durable key → answer memo. Lookups go to an optional
// in-front Memo first and then to the record store; inserts are the same
// RequestRecord rows the QuotaTracker reads.

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

// Memo is a read-through answer cache in front of the store. Records are
// immutable, so a memo entry can only be stale by absence.
type Memo interface {
	Get(ctx context.Context, key string) (answer string, ok bool, err error)
	Set(ctx context.Context, key, answer string) error
}

// ResponseCache looks up and records answers by normalized key.
type ResponseCache struct {
	Store RecordStore
	Memo  Memo // optional
	Log   zerolog.Logger
}

// NewResponseCache returns a cache over store with an optional memo.
func NewResponseCache(store RecordStore, memo Memo) *ResponseCache {
	return &ResponseCache{
		Store: store,
		Memo:  memo,
		Log:   log.With().Str("component", "response_cache").Logger(),
	}
}

// RecordInput carries one successful request to persist.
type RecordInput struct {
	UserID        string
	Username      string
	Key           string
	Answer        string
	DailyLimit    int
	CountAtInsert int
	At            time.Time
}

// Lookup returns the stored answer for key. When several records share the
// key the store's first row, the most recent one, wins. Store failures are
// logged and reported as a miss.
func (c *ResponseCache) Lookup(ctx context.Context, key string) (string, bool) {
	ctx, span := otel.Tracer("services/ResponseCache").Start(ctx, "Lookup",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if c.Memo != nil {
		if ans, ok, err := c.Memo.Get(ctx, key); err != nil {
			c.Log.Warn().Err(err).Str("key", key).Msg("memo get failed")
		} else if ok {
			span.SetAttributes(attribute.String("cache.source", "memo"))
			return ans, true
		}
	}

	rec, err := absent(c.Store.FindByKey(ctx, key))
	if err != nil {
		span.RecordError(err)
		c.Log.Error().Err(err).Str("key", key).Msg("cache lookup failed; treating as miss")
		return "", false
	}
	if rec == nil {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return "", false
	}
	span.SetAttributes(attribute.Bool("cache.hit", true), attribute.String("cache.source", "store"))
	c.remember(ctx, key, rec.AIResponse)
	return rec.AIResponse, true
}

// Record persists a new RequestRecord. Failures come back as
// *StoreWriteError after being logged; they are never retried.
func (c *ResponseCache) Record(ctx context.Context, in RecordInput) error {
	ctx, span := otel.Tracer("services/ResponseCache").Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("user.id", in.UserID),
			attribute.Int("quota.count", in.CountAtInsert),
		))
	defer span.End()

	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	rec := &domain.RequestRecord{
		UserID:       in.UserID,
		Username:     in.Username,
		Question:     in.Key,
		AIResponse:   in.Answer,
		Timestamp:    domain.FormatTimestamp(at),
		DailyLimit:   in.DailyLimit,
		CurrentCount: in.CountAtInsert,
	}
	if err := c.Store.Insert(ctx, rec); err != nil {
		span.RecordError(err)
		werr := &StoreWriteError{Err: err}
		c.Log.Error().Err(err).Str("user_id", in.UserID).Str("key", in.Key).Msg("failed to record request")
		return werr
	}
	c.Log.Debug().Str("user_id", in.UserID).Str("id", rec.ID).Int("count", in.CountAtInsert).Msg("request recorded")
	c.remember(ctx, in.Key, in.Answer)
	return nil
}

func (c *ResponseCache) remember(ctx context.Context, key, answer string) {
	if c.Memo == nil || key == "" {
		return
	}
	if err := c.Memo.Set(ctx, key, answer); err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("memo set failed")
	}
}
