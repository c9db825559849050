package repository

import (
	"context"
	"testgen/internal/domain/entity"
)

// CacheStore is a durable generation cache keyed by request fingerprint.
type CacheStore interface {
	Get(ctx context.Context, key entity.CacheKey) (string, bool, error)
	Put(ctx context.Context, key entity.CacheKey, value string) error
	Close(ctx context.Context) error
}
