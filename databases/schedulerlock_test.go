package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/smart-grievance/grievance-api/databases"
	"github.com/smart-grievance/grievance-api/databases/mocks"
)

func TestSchedulerLockDatabase_TryAcquireLock(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(int64(1), nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "scheduler_locks").Return(collectionHelper)

	lockDba := databases.NewSchedulerLockDatabase(dbHelper)

	acquired, err := lockDba.TryAcquireLock(context.Background(), "escalation_sweep", "web.1", 10*time.Minute)

	assert.NoError(t, err)
	assert.True(t, acquired)
}

func TestSchedulerLockDatabase_TryAcquireLockHeldElsewhere(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	// the upsert collides with the live lock document held by another instance
	dupErr := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), dupErr)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "scheduler_locks").Return(collectionHelper)

	lockDba := databases.NewSchedulerLockDatabase(dbHelper)

	acquired, err := lockDba.TryAcquireLock(context.Background(), "escalation_sweep", "web.2", 10*time.Minute)

	assert.NoError(t, err)
	assert.False(t, acquired)
}

func TestSchedulerLockDatabase_TryAcquireLockError(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("mocked-error"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "scheduler_locks").Return(collectionHelper)

	lockDba := databases.NewSchedulerLockDatabase(dbHelper)

	acquired, err := lockDba.TryAcquireLock(context.Background(), "escalation_sweep", "web.1", 10*time.Minute)

	assert.EqualError(t, err, "mocked-error")
	assert.False(t, acquired)
}

func TestSchedulerLockDatabase_ReleaseLock(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("DeleteOne", mock.Anything, mock.Anything).
		Return(nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "scheduler_locks").Return(collectionHelper)

	lockDba := databases.NewSchedulerLockDatabase(dbHelper)

	err := lockDba.ReleaseLock(context.Background(), "escalation_sweep", "web.1")

	assert.NoError(t, err)
}
