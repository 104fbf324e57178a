package db

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation performs one attempt of a write and returns its error.
type Operation func() error

// IsRetryable decides whether a failed attempt should be retried.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

const duplicateKeyCode = 11000

// Try runs op with DefaultMaxRetries, retrying only on duplicate key errors.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries more times while retryable(err) holds.
// Operations that regenerate their identifiers on each call use this to ride out
// unique-index collisions. The last error is returned when the budget runs out.
func WithRetries(ctx context.Context, op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}
		log.Printf("Retryable write error on attempt %d/%d: %v", attempt+1, maxRetries+1, err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}
	return err
}

// IsMongoDuplicateKeyError reports whether err carries MongoDB error code 11000.
func IsMongoDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == duplicateKeyCode {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == duplicateKeyCode {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == duplicateKeyCode {
		return true
	}
	return false
}
