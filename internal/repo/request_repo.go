// Package repo implements the GORM-backed persistence layer for request
// records and ingress receipts. This file provides repository functions for
// the RequestRecord model and the Store adapter consumed by the services.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = gorm.ErrRecordNotFound

// newest orders records so the first row is the most recently inserted one.
const newest = "timestamp DESC, id DESC"

// CreateRequest inserts rec, assigning an ID when empty.
func CreateRequest(ctx context.Context, db *gorm.DB, rec *domain.RequestRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(rec).Error
}

// FindRequestByQuestion returns the most recent record whose normalized
// question equals key.
func FindRequestByQuestion(ctx context.Context, db *gorm.DB, key string) (*domain.RequestRecord, error) {
	var rec domain.RequestRecord
	err := db.WithContext(ctx).Where("question = ?", key).Order(newest).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestRequestForUser returns the newest record of userID.
func LatestRequestForUser(ctx context.Context, db *gorm.DB, userID string) (*domain.RequestRecord, error) {
	var rec domain.RequestRecord
	err := db.WithContext(ctx).Where("user_id = ?", userID).Order(newest).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestRequest returns the newest record in the table.
func LatestRequest(ctx context.Context, db *gorm.DB) (*domain.RequestRecord, error) {
	var rec domain.RequestRecord
	if err := db.WithContext(ctx).Order(newest).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRequests returns every record, oldest first.
func ListRequests(ctx context.Context, db *gorm.DB) ([]domain.RequestRecord, error) {
	var out []domain.RequestRecord
	err := db.WithContext(ctx).Order("timestamp ASC, id ASC").Find(&out).Error
	return out, err
}

// Store adapts the repository functions to the services.RecordStore
// contract over a single requests table.
type Store struct {
	DB    *gorm.DB
	Table string
}

// NewStore returns a Store over table (the default table when empty).
func NewStore(db *gorm.DB, table string) *Store {
	if strings.TrimSpace(table) == "" {
		table = domain.DefaultRequestsTable
	}
	return &Store{DB: db, Table: table}
}

func (s *Store) tx() *gorm.DB { return s.DB.Table(s.Table) }

// Insert persists rec.
func (s *Store) Insert(ctx context.Context, rec *domain.RequestRecord) error {
	return CreateRequest(ctx, s.tx(), rec)
}

// FindByKey returns the newest record for key. A miss matches both
// ErrNotFound and domain.ErrNotFound.
func (s *Store) FindByKey(ctx context.Context, key string) (*domain.RequestRecord, error) {
	return found(FindRequestByQuestion(ctx, s.tx(), key))
}

// FindLatestByUser returns the newest record of userID.
func (s *Store) FindLatestByUser(ctx context.Context, userID string) (*domain.RequestRecord, error) {
	return found(LatestRequestForUser(ctx, s.tx(), userID))
}

// FindLatest returns the newest record overall.
func (s *Store) FindLatest(ctx context.Context) (*domain.RequestRecord, error) {
	return found(LatestRequest(ctx, s.tx()))
}

// ScanAll returns every record.
func (s *Store) ScanAll(ctx context.Context) ([]domain.RequestRecord, error) {
	return ListRequests(ctx, s.tx())
}

func found(rec *domain.RequestRecord, err error) (*domain.RequestRecord, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return rec, err
}
