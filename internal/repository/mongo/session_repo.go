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

const sessionCollectionName = "sessions"

// mongoSessionRepository implements repository.SessionRepository
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new Session repository backed by MongoDB.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error) {
	if session.ClientID.IsZero() || session.TherapistID.IsZero() {
		return primitive.NilObjectID, errors.New("session requires clientId and therapistId")
	}

	session.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.Date = session.Date.UTC()
	if session.Activities == nil {
		session.Activities = []domain.Activity{}
	}
	if session.MediaIDs == nil {
		session.MediaIDs = []primitive.ObjectID{}
	}

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Session, error) {
	var session domain.Session
	if err := findOne(ctx, r.collection, bson.M{"_id": id}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns one page of sessions, newest first, plus the total match count.
func (r *mongoSessionRepository) List(ctx context.Context, filter repository.SessionFilter) ([]domain.Session, int64, error) {
	query := buildSessionFilter(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := pageOptions(filter.Page).SetSort(bson.D{{Key: "date", Value: -1}})
	sessions := []domain.Session{}
	if err := findAll(ctx, r.collection, query, &sessions, opts); err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// Update rewrites the note content of a session; client, owner and media links are immutable here.
func (r *mongoSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	if session.ID.IsZero() {
		return errors.New("session ID is required for update")
	}
	session.UpdatedAt = time.Now().UTC()
	if session.Activities == nil {
		session.Activities = []domain.Activity{}
	}

	filter := bson.M{"_id": session.ID, "therapistId": session.TherapistID}
	update := bson.M{"$set": bson.M{
		"date":              session.Date.UTC(),
		"durationMinutes":   session.DurationMinutes,
		"activities":        session.Activities,
		"observations":      session.Observations,
		"notes":             session.Notes,
		"goalProgress":      session.GoalProgress,
		"sharedWithParents": session.SharedWithParents,
		"updatedAt":         session.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

func (r *mongoSessionRepository) Delete(ctx context.Context, id, therapistID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "therapistId": therapistID})
	if err != nil {
		return err
	}
	return deletedOrNotFound(result)
}

func (r *mongoSessionRepository) DeleteByClientID(ctx context.Context, clientID primitive.ObjectID) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"clientId": clientID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (r *mongoSessionRepository) AddMedia(ctx context.Context, sessionID, mediaID primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"mediaIds": mediaID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": sessionID}, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

func (r *mongoSessionRepository) RemoveMedia(ctx context.Context, sessionID, mediaID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"mediaIds": mediaID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": sessionID}, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

// EnsureSessionIndexes creates necessary indexes for the sessions collection.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "therapistId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
