package mongo

import (
	"context"
	"errors"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mediaCollectionName = "media"

// mongoMediaRepository implements repository.MediaRepository
type mongoMediaRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaRepository creates a new Media repository backed by MongoDB.
func NewMongoMediaRepository(db *mongo.Database) repository.MediaRepository {
	return &mongoMediaRepository{
		collection: db.Collection(mediaCollectionName),
	}
}

// Create inserts new media metadata into the database.
func (r *mongoMediaRepository) Create(ctx context.Context, media *domain.Media) (primitive.ObjectID, error) {
	if media.SessionID.IsZero() || media.ClientID.IsZero() || media.TherapistID.IsZero() || media.ObjectKey == "" {
		return primitive.NilObjectID, errors.New("media requires sessionId, clientId, therapistId, and objectKey")
	}

	media.ID = primitive.NewObjectID()
	media.UploadedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, media)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

func (r *mongoMediaRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Media, error) {
	var media domain.Media
	if err := findOne(ctx, r.collection, bson.M{"_id": id}, &media); err != nil {
		return nil, err
	}
	return &media, nil
}

func (r *mongoMediaRepository) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.Media, error) {
	return r.list(ctx, bson.M{"sessionId": sessionID})
}

func (r *mongoMediaRepository) GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.Media, error) {
	return r.list(ctx, bson.M{"clientId": clientID})
}

func (r *mongoMediaRepository) list(ctx context.Context, filter bson.M) ([]domain.Media, error) {
	media := []domain.Media{}
	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: 1}})
	if err := findAll(ctx, r.collection, filter, &media, opts); err != nil {
		return nil, err
	}
	return media, nil
}

func (r *mongoMediaRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	return deletedOrNotFound(result)
}

func (r *mongoMediaRepository) DeleteByClientID(ctx context.Context, clientID primitive.ObjectID) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"clientId": clientID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureMediaIndexes creates necessary indexes for the media collection.
func EnsureMediaIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}},
			Options: options.Index(),
		},
		{
			// An uploaded object is confirmed at most once
			Keys:    bson.D{{Key: "objectKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
