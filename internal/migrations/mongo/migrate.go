package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lenspool/internal/migrations/mongo/validators"
	"lenspool/pkg/model"
)

var (
	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "unit_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_date", Value: 1},
			{Key: "end_date", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "agent_id", Value: 1},
			{Key: "start_date", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "waitlist_for_booking_id", Value: 1},
			{Key: "status", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "is_late_cancellation", Value: 1},
		}},
	}

	CameraUnitsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	// The TTL index reaps advisory locks abandoned by a crashed
	// process, so a stuck lock never blocks the unit for long.
	UnitLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, unitIDs []string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running lenspool Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Bookings": {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		"Camera_units": {
			Indexes:   CameraUnitsIndexes,
			Validator: validators.CameraUnitValidator,
		},
		"Unit_locks": {
			Indexes:   UnitLocksIndexes,
			Validator: validators.UnitLockValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	if err := seedCameraUnits(ctx, db, unitIDs); err != nil {
		return fmt.Errorf("failed to seed camera units: %w", err)
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("ℹ️ Collection %s already exists — updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}

// seedCameraUnits upserts the configured units so a fresh deployment
// starts with the full pool. Existing unit state is never overwritten.
func seedCameraUnits(ctx context.Context, db *mongo.Database, unitIDs []string) error {
	coll := db.Collection("Camera_units")

	for _, id := range unitIDs {
		filter := bson.M{"_id": id}
		update := bson.M{
			"$setOnInsert": bson.M{
				"status":     model.UnitAvailable,
				"updated_at": time.Now().UTC(),
			},
		}
		opts := options.Update().SetUpsert(true)
		result, err := coll.UpdateOne(ctx, filter, update, opts)
		if err != nil {
			return fmt.Errorf("failed seeding unit %s: %w", id, err)
		}
		if result.UpsertedCount > 0 {
			fmt.Printf("🎥 Seeded camera unit: %s\n", id)
		}
	}
	return nil
}
