// Package domain defines the persistence models for gated question requests
// and ingress event receipts. These types are mapped with GORM and, through
// their JSON tags, with the Supabase REST schema used by the original table.
package domain

import (
	"errors"
	"strings"
	"time"
)

// DefaultRequestsTable is the table that holds RequestRecord rows.
const DefaultRequestsTable = "KariGPT_requests"

// TimestampLayout is the fixed-width UTC layout used for stored timestamps.
// Fixed width keeps lexical ordering equal to chronological ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// RequestRecord is one successful, backend-answered request. Rows are
// append-only: they are created once after the answer is delivered and are
// never mutated by the broker.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: opaque requester identifier (Discord snowflake or API caller).
//   - Username: display label, for reporting only.
//   - Question: normalized cache key derived from the question text.
//   - AIResponse: the generated answer delivered to the channel.
//   - Timestamp: creation instant in UTC, formatted with TimestampLayout.
//     Kept as text so rows written by other tools can carry any ISO form;
//     unparseable values are tolerated by readers.
//   - DailyLimit: quota ceiling at write time.
//   - CurrentCount: the subject's request count after this request.
type RequestRecord struct {
	ID           string `json:"id,omitempty"   gorm:"type:char(36);primaryKey"`
	UserID       string `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_requests_user_ts,priority:1"`
	Username     string `json:"username"       gorm:"type:varchar(255);not null;default:''"`
	Question     string `json:"question"       gorm:"type:text;not null;index:idx_requests_question"`
	AIResponse   string `json:"ai_response"    gorm:"type:text;not null"`
	Timestamp    string `json:"timestamp"      gorm:"type:varchar(40);not null;index:idx_requests_user_ts,priority:2;index:idx_requests_ts"`
	DailyLimit   int    `json:"daily_limit"    gorm:"not null"`
	CurrentCount int    `json:"current_count"  gorm:"not null"`
}

// TableName returns the default database table name for RequestRecord.
func (RequestRecord) TableName() string { return DefaultRequestsTable }

// Time parses the stored timestamp. See ParseTimestamp.
func (r RequestRecord) Time() (time.Time, error) { return ParseTimestamp(r.Timestamp) }

// EventReceipt marks an ingress event (keyed by Idempotency-Key) as already
// processed so a redelivered event is not gated twice.
type EventReceipt struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_source_key,priority:2"`
	Source    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_receipt_source_key,priority:1"`
	Outcome   string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (EventReceipt) TableName() string { return "event_receipts" }

// ErrNotFound is returned by record stores when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// ErrBadTimestamp is returned when a stored timestamp matches no known layout.
var ErrBadTimestamp = errors.New("unparseable timestamp")

// timestamp layouts accepted on read, most specific first. Naive values
// (no offset) are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts ISO-8601 timestamps with or without an offset and
// with or without fractional seconds. It returns ErrBadTimestamp otherwise.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrBadTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrBadTimestamp
}
