// Package repo implements the data persistence layer for request records,
// backed by GORM. This file provides helpers for the EventReceipt model that
// keeps a redelivered ingress event from being gated twice.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/karigpt-broker/internal/domain"
)

// ErrDuplicate indicates that a receipt already exists for the given
// (source, key) pair.
var ErrDuplicate = errors.New("duplicate")

// GetReceipt returns a non-expired receipt or ErrNotFound.
func GetReceipt(ctx context.Context, db *gorm.DB, source, key string, now time.Time) (*domain.EventReceipt, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.EventReceipt
	err := db.WithContext(ctx).
		Where("source = ? AND key = ? AND expires_at > ?", source, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateReceipt inserts a receipt and returns ErrDuplicate on unique violation.
// Expired receipts for the same pair are removed first so keys can be reused
// once their TTL has passed.
func CreateReceipt(ctx context.Context, db *gorm.DB, source, key, outcome string, ttl time.Duration) (*domain.EventReceipt, error) {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Where("source = ? AND key = ? AND expires_at <= ?", source, key, now).
		Delete(&domain.EventReceipt{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.EventReceipt{
		ID:        uuid.NewString(),
		Source:    source,
		Key:       key,
		Outcome:   outcome,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// Receipts binds the receipt helpers to one database handle.
type Receipts struct {
	DB *gorm.DB
}

// Seen reports whether a live receipt exists for (source, key).
func (r Receipts) Seen(ctx context.Context, source, key string) (bool, error) {
	_, err := GetReceipt(ctx, r.DB, source, key, time.Now().UTC())
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Mark stores a receipt for (source, key). A concurrent duplicate is
// reported as ErrDuplicate.
func (r Receipts) Mark(ctx context.Context, source, key, outcome string, ttl time.Duration) error {
	_, err := CreateReceipt(ctx, r.DB, source, key, outcome, ttl)
	return err
}
