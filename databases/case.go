package databases

// go generate: mockery --name CaseDatabase

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smart-grievance/grievance-api/models"
)

const caseName = "cases"

// ErrInsertFailed is returned when an insert produced no document id
var ErrInsertFailed = errors.New("insert failed")

// CaseDatabase contains the methods to use with the case database
type CaseDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Case, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Case, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	FindOneAndUpdate(context.Context, interface{}, interface{}) (*models.Case, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) error
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type caseDatabase struct {
	db DatabaseHelper
}

// NewCaseDatabase initializes a new instance of case database with the provided db connection
func NewCaseDatabase(db DatabaseHelper) CaseDatabase {
	return &caseDatabase{
		db: db,
	}
}

func (c *caseDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Case, error) {
	kase := &models.Case{}
	err := c.db.Collection(caseName).FindOne(ctx, filter, opts...).Decode(&kase)
	if err != nil {
		return nil, err
	}
	return kase, nil
}

func (c *caseDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Case, error) {
	var cases []models.Case
	cr := c.db.Collection(caseName).Find(ctx, filter, opts...)
	err := cr.Decode(&cases)
	if err != nil {
		return nil, err
	}
	return cases, nil
}

func (c *caseDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res := c.db.Collection(caseName).InsertOne(ctx, document, opts...)
	if res.Decode() == nil {
		return res, ErrInsertFailed
	}
	return res, nil
}

// FindOneAndUpdate applies the update to the single case matching filter and
// returns the post-update document. mongo.ErrNoDocuments signals that the
// filter's precondition did not hold, which the lifecycle engine relies on
// for its compare-and-set writes.
func (c *caseDatabase) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (*models.Case, error) {
	after := options.After
	opts := options.FindOneAndUpdate().SetReturnDocument(after)
	kase := &models.Case{}
	err := c.db.Collection(caseName).FindOneAndUpdate(ctx, filter, update, opts).Decode(&kase)
	if err != nil {
		return nil, err
	}
	return kase, nil
}

func (c *caseDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return c.db.Collection(caseName).DeleteOne(ctx, filter, opts...)
}

func (c *caseDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(caseName).CountDocuments(ctx, filter, opts...)
}
