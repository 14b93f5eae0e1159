package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lenspool/pkg/config"
	"lenspool/pkg/model"
)

const (
	CollectionName = "Camera_units"
)

var ErrNotFound = errors.New("camera unit not found")

type UnitRepository interface {
	FindByID(ctx context.Context, id string) (*model.CameraUnit, error)
	FindAll(ctx context.Context) ([]*model.CameraUnit, error)
	SetStatus(ctx context.Context, id string, status model.UnitStatus, notes string) error
	SetOccupied(ctx context.Context, id string, bookingID string) error
	Release(ctx context.Context, id string) error
}

type mongoUnitRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUnitRepository(cfg *config.Config) UnitRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoUnitRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoUnitRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoUnitRepository) FindByID(ctx context.Context, id string) (*model.CameraUnit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var unit model.CameraUnit
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&unit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find camera unit: %w", err)
	}

	return &unit, nil
}

func (r *mongoUnitRepository) FindAll(ctx context.Context) ([]*model.CameraUnit, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find camera units: %w", err)
	}
	defer cursor.Close(ctx)

	var units []*model.CameraUnit
	if err = cursor.All(ctx, &units); err != nil {
		return nil, fmt.Errorf("failed to decode camera units: %w", err)
	}

	return units, nil
}

func (r *mongoUnitRepository) SetStatus(ctx context.Context, id string, status model.UnitStatus, notes string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":            status,
			"maintenance_notes": notes,
			"updated_at":        time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update camera unit status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOccupied marks the unit as physically out with an agent.
func (r *mongoUnitRepository) SetOccupied(ctx context.Context, id string, bookingID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":             model.UnitInUse,
			"current_booking_id": bookingID,
			"updated_at":         time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mark camera unit occupied: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Release returns the unit to the pool after a confirmed return.
func (r *mongoUnitRepository) Release(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":             model.UnitAvailable,
			"current_booking_id": "",
			"updated_at":         time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to release camera unit: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
