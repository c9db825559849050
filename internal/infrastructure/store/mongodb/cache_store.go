package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"testgen/internal/domain/entity"
	"testgen/internal/domain/repository"
	"testgen/internal/infrastructure/metrics"
)

const cacheCollection = "generation_cache"

type MongoCacheStore struct {
	col *mongo.Collection
	ttl time.Duration
}

var _ repository.CacheStore = (*MongoCacheStore)(nil)

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// NewMongoCacheStore uses the generation_cache collection of db. Mongo's TTL
// monitor removes entries older than ttl; reads also check the age since the
// monitor only runs about once a minute. A zero ttl keeps entries forever.
func NewMongoCacheStore(ctx context.Context, db *mongo.Database, ttl time.Duration) (*MongoCacheStore, error) {
	col := db.Collection(cacheCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if ttl > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{bson.E{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
		})
	}
	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		metrics.IncError("mongo_cache_store", "index_error")
		return nil, fmt.Errorf("create cache indexes: %w", err)
	}

	return &MongoCacheStore{col: col, ttl: ttl}, nil
}

func (s *MongoCacheStore) Get(ctx context.Context, key entity.CacheKey) (string, bool, error) {
	var entry entity.CacheEntry
	err := s.col.FindOne(ctx, bson.M{"key": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		metrics.IncError("mongo_cache_store", "get_error")
		return "", false, err
	}
	if s.ttl > 0 && time.Since(entry.CreatedAt) > s.ttl {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (s *MongoCacheStore) Put(ctx context.Context, key entity.CacheKey, value string) error {
	entry := entity.CacheEntry{Key: key, Value: value, CreatedAt: time.Now().UTC()}
	_, err := s.col.ReplaceOne(ctx, bson.M{"key": key}, entry, options.Replace().SetUpsert(true))
	if err != nil {
		metrics.IncError("mongo_cache_store", "put_error")
		return err
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoCacheStore) Close(ctx context.Context) error {
	return s.col.Database().Client().Disconnect(ctx)
}
