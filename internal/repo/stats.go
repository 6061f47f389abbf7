// Package repo implements the data persistence layer for request records,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// RequestsStats returns the total number of rows in table and the greatest
// stored timestamp among them.
//
// It executes two lightweight queries. When the table has no rows the
// returned count is 0 and latest is "".
//
// Return values:
//   - count:  total records
//   - latest: stored timestamp text of the newest record, or ""
//   - err:    database error, if any
func RequestsStats(ctx context.Context, db *gorm.DB, table string) (count int64, latest string, err error) {
	q := db.WithContext(ctx).Table(table)

	if err = q.Count(&count).Error; err != nil {
		return 0, "", err
	}
	if count == 0 {
		return 0, "", nil
	}

	var row struct {
		Timestamp string
	}
	if err = db.WithContext(ctx).Table(table).Select("timestamp").Order("timestamp DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, "", err
	}
	return count, row.Timestamp, nil
}

// Stats implements the stats probe used by the usage summary handler.
func (s *Store) Stats(ctx context.Context) (int64, string, error) {
	return RequestsStats(ctx, s.DB, s.Table)
}
