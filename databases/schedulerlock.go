package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const lockName = "scheduler_locks"

// SchedulerLockDatabase hands out time-bounded locks so scheduled jobs run on
// exactly one instance at a time
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, instanceID string) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of the scheduler lock database
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{
		db: db,
	}
}

// TryAcquireLock upserts the lock document if it is free, expired, or already
// held by this instance. A duplicate key error means another instance holds
// a live lock.
func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"_id": name,
		"$or": []bson.M{
			{"expiresAt": bson.M{"$lte": now}},
			{"instanceId": instanceID},
		},
	}
	update := bson.M{"$set": bson.M{
		"instanceId": instanceID,
		"expiresAt":  now.Add(ttl),
		"acquiredAt": now,
	}}
	upsert := options.Update().SetUpsert(true)

	_, err := s.db.Collection(lockName).UpdateOne(ctx, filter, update, upsert)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReleaseLock frees the lock if this instance still holds it
func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, name, instanceID string) error {
	return s.db.Collection(lockName).DeleteOne(ctx, bson.M{"_id": name, "instanceId": instanceID})
}
