// Package supabase implements the request record store over Supabase's
// PostgREST API, the table layout used by the hosted bot.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

// Config holds Supabase connection configuration.
type Config struct {
	URL    string
	APIKey string
	Table  string // Default: domain.DefaultRequestsTable
}

// Store implements services.RecordStore against one Supabase table.
type Store struct {
	client *supabase.Client
	table  string
}

// New creates a Store. It does not contact the server.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if cfg.Table == "" {
		cfg.Table = domain.DefaultRequestsTable
	}

	client, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Store{client: client, table: cfg.Table}, nil
}

// Table returns the configured table name.
func (s *Store) Table() string { return s.table }

var newestFirst = &postgrest.OrderOpts{Ascending: false}

// Insert writes rec. The server assigns the row ID.
func (s *Store) Insert(_ context.Context, rec *domain.RequestRecord) error {
	_, _, err := s.client.From(s.table).
		Insert(toRow(rec), false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// FindByKey returns the newest record whose question equals key.
func (s *Store) FindByKey(_ context.Context, key string) (*domain.RequestRecord, error) {
	var rows []row
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("question", key).
		Order("timestamp", newestFirst).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search previous questions: %w", err)
	}
	return first(rows)
}

// FindLatestByUser returns the newest record of userID.
func (s *Store) FindLatestByUser(_ context.Context, userID string) (*domain.RequestRecord, error) {
	var rows []row
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("timestamp", newestFirst).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get last request for user: %w", err)
	}
	return first(rows)
}

// FindLatest returns the newest record in the table.
func (s *Store) FindLatest(_ context.Context) (*domain.RequestRecord, error) {
	var rows []row
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Order("timestamp", newestFirst).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get last request: %w", err)
	}
	return first(rows)
}

// scanPageSize is the page requested per ScanAll round trip. The server
// may return fewer rows (db-max-rows), so paging advances by what came
// back and stops only on an empty page.
const scanPageSize = 1000

// ScanAll returns every record, oldest first, paging through the table.
func (s *Store) ScanAll(ctx context.Context) ([]domain.RequestRecord, error) {
	var out []domain.RequestRecord
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rows []row
		_, err := s.client.From(s.table).
			Select("*", "", false).
			Order("timestamp", &postgrest.OrderOpts{Ascending: true}).
			Order("id", &postgrest.OrderOpts{Ascending: true}).
			Range(offset, offset+scanPageSize-1, "").
			ExecuteTo(&rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan requests at offset %d: %w", offset, err)
		}
		if len(rows) == 0 {
			return out, nil
		}
		for i := range rows {
			out = append(out, rows[i].record())
		}
		offset += len(rows)
	}
}

func first(rows []row) (*domain.RequestRecord, error) {
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	rec := rows[0].record()
	return &rec, nil
}

// row mirrors the table columns. id and user_id are BIGINT in the hosted
// schema and may also be text, so both decode through flexString.
type row struct {
	ID           flexString `json:"id,omitempty"`
	UserID       flexString `json:"user_id"`
	Username     string     `json:"username"`
	Question     string     `json:"question"`
	AIResponse   string     `json:"ai_response"`
	Timestamp    string     `json:"timestamp"`
	DailyLimit   int        `json:"daily_limit"`
	CurrentCount int        `json:"current_count"`
}

func toRow(rec *domain.RequestRecord) row {
	return row{
		UserID:       flexString(rec.UserID),
		Username:     rec.Username,
		Question:     rec.Question,
		AIResponse:   rec.AIResponse,
		Timestamp:    rec.Timestamp,
		DailyLimit:   rec.DailyLimit,
		CurrentCount: rec.CurrentCount,
	}
}

func (r row) record() domain.RequestRecord {
	return domain.RequestRecord{
		ID:           string(r.ID),
		UserID:       string(r.UserID),
		Username:     r.Username,
		Question:     r.Question,
		AIResponse:   r.AIResponse,
		Timestamp:    r.Timestamp,
		DailyLimit:   r.DailyLimit,
		CurrentCount: r.CurrentCount,
	}
}

// flexString accepts a JSON string or number and encodes digit-only values
// as numbers.
type flexString string

func (f flexString) MarshalJSON() ([]byte, error) {
	s := string(f)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
