package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"lenspool/pkg/config"
	"lenspool/pkg/model"
)

// UnitLockRepository provides operations for advisory locks keyed by
// camera unit. A TTL index on expires_at reaps locks abandoned by a
// crashed process.
type UnitLockRepository interface {
	Acquire(ctx context.Context, unitID string, ttl time.Duration) (*model.UnitLock, error)
	Release(ctx context.Context, unitID string) error
}

type mongoUnitLockRepository struct {
	collection *mongo.Collection
}

func NewUnitLockRepository(cfg *config.Config) UnitLockRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoUnitLockRepository{
		collection: db.Collection("Unit_locks"),
	}
}

func LockID(unitID string) string {
	return "unit_lock_" + unitID
}

// Acquire inserts the lock document. A duplicate key error means
// another request holds the unit; callers translate that into a
// contention response.
func (r *mongoUnitLockRepository) Acquire(ctx context.Context, unitID string, ttl time.Duration) (*model.UnitLock, error) {
	now := time.Now()
	lock := &model.UnitLock{
		ID:        LockID(unitID),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

func (r *mongoUnitLockRepository) Release(ctx context.Context, unitID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": LockID(unitID)})
	return err
}
