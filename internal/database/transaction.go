package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn inside a transaction. fn returning an error rolls
// everything back; a panic inside fn also rolls back before propagating.
func WithTransaction(ctx context.Context, db Database, fn func(tx *gorm.DB) error) error {
	if err := db.Session(ctx).Transaction(fn); err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	return nil
}

// WithTransactionResult runs fn inside a transaction, returning fn's result on
// success. fn returning an error rolls everything back.
func WithTransactionResult[T any](ctx context.Context, db Database, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var result T
	err := WithTransaction(ctx, db, func(tx *gorm.DB) error {
		var err error
		result, err = fn(tx)
		return err
	})
	return result, err
}
