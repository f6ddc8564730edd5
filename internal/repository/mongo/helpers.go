package mongo

import (
	"context"
	"errors"

	"regulie/therapy-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func insertedObjectID(result *mongo.InsertOneResult) (primitive.ObjectID, error) {
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return id, nil
}

// findOne decodes the first match into out, mapping ErrNoDocuments to repository.ErrNotFound.
func findOne(ctx context.Context, coll *mongo.Collection, filter any, out any) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}

// findAll decodes every match into out (a pointer to a slice).
func findAll(ctx context.Context, coll *mongo.Collection, filter any, out any, opts ...*options.FindOptions) error {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, out); err != nil {
		return err
	}
	return cursor.Err()
}

func pageOptions(p repository.Page) *options.FindOptions {
	p = p.Normalize()
	return options.Find().SetSkip(p.Skip()).SetLimit(int64(p.Limit))
}

func matchedOrNotFound(result *mongo.UpdateResult) error {
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func deletedOrNotFound(result *mongo.DeleteResult) error {
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
