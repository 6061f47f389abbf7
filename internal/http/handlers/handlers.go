package handlers

import (
	"context"
	"time"

	"github.com/tbourn/karigpt-broker/internal/commands"
	"github.com/tbourn/karigpt-broker/internal/personality"
	"github.com/tbourn/karigpt-broker/internal/services"
)

// Summarizer is satisfied by *services.MetricsAggregator.
type Summarizer interface {
	Summarize(ctx context.Context, now time.Time) (services.Summary, error)
}

// StatusReader is satisfied by *services.QuotaTracker.
type StatusReader interface {
	Status(ctx context.Context, userID string, now time.Time) services.Status
}

// StatsReader fingerprints the request table for ETags. *repo.Store
// satisfies it; stores without cheap stats leave it nil.
type StatsReader interface {
	Stats(ctx context.Context) (count int64, latest string, err error)
}

// MessageGate is satisfied by *services.Gate.
type MessageGate interface {
	Handle(ctx context.Context, msg services.Message) (services.Outcome, error)
}

// CommandRunner is satisfied by *commands.Processor.
type CommandRunner interface {
	Execute(ctx context.Context, inv commands.Invocation) (commands.Reply, error)
}

// ReceiptMarker records processed ingress events. repo.Receipts satisfies it.
type ReceiptMarker interface {
	Mark(ctx context.Context, source, key, outcome string, ttl time.Duration) error
}

// Deps are the collaborators of Handlers. Gate must be built over
// CaptureChannel so replies can be returned in the HTTP response.
type Deps struct {
	Personalities *personality.Registry
	Metrics       Summarizer
	Quota         StatusReader
	Stats         StatsReader
	Gate          MessageGate
	Commands      CommandRunner
	Receipts      ReceiptMarker
	// ReceiptSource namespaces ingress keys; defaults to "http".
	ReceiptSource string
	ReceiptTTL    time.Duration
	Location      *time.Location
	Now           func() time.Time
}

// Handlers groups the API endpoints.
type Handlers struct {
	d Deps
}

// New binds handlers to d.
func New(d Deps) *Handlers {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.ReceiptSource == "" {
		d.ReceiptSource = "http"
	}
	if d.ReceiptTTL <= 0 {
		d.ReceiptTTL = 24 * time.Hour
	}
	return &Handlers{d: d}
}
