package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn inside a transaction. A non-nil error from fn (or a panic)
// rolls it back; raw GORM errors that escape fn come back as the package sentinels.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := db.DB.WithContext(ctx).Transaction(fn); err != nil {
		return fmt.Errorf("transaction failed: %w", MapGormError(err))
	}
	return nil
}
