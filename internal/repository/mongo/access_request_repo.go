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

const accessRequestCollectionName = "access_requests"

// mongoAccessRequestRepository implements repository.AccessRequestRepository
type mongoAccessRequestRepository struct {
	collection *mongo.Collection
}

// NewMongoAccessRequestRepository creates a new AccessRequest repository backed by MongoDB.
func NewMongoAccessRequestRepository(db *mongo.Database) repository.AccessRequestRepository {
	return &mongoAccessRequestRepository{
		collection: db.Collection(accessRequestCollectionName),
	}
}

func (r *mongoAccessRequestRepository) Create(ctx context.Context, req *domain.AccessRequest) (primitive.ObjectID, error) {
	if req.ParentID.IsZero() || req.TherapistID.IsZero() {
		return primitive.NilObjectID, errors.New("access request requires parentId and therapistId")
	}

	req.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = domain.AccessPending
	}

	result, err := r.collection.InsertOne(ctx, req)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

func (r *mongoAccessRequestRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.AccessRequest, error) {
	var req domain.AccessRequest
	if err := findOne(ctx, r.collection, bson.M{"_id": id}, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *mongoAccessRequestRepository) GetByParentID(ctx context.Context, parentID primitive.ObjectID) ([]domain.AccessRequest, error) {
	return r.list(ctx, bson.M{"parentId": parentID})
}

// GetByTherapistID lists incoming requests, optionally narrowed to one status.
func (r *mongoAccessRequestRepository) GetByTherapistID(ctx context.Context, therapistID primitive.ObjectID, status domain.AccessRequestStatus) ([]domain.AccessRequest, error) {
	filter := bson.M{"therapistId": therapistID}
	if status != "" {
		filter["status"] = status
	}
	return r.list(ctx, filter)
}

func (r *mongoAccessRequestRepository) list(ctx context.Context, filter bson.M) ([]domain.AccessRequest, error) {
	requests := []domain.AccessRequest{}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := findAll(ctx, r.collection, filter, &requests, opts); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *mongoAccessRequestRepository) ExistsPending(ctx context.Context, parentID, therapistID primitive.ObjectID, childName string) (bool, error) {
	filter := bson.M{
		"parentId":    parentID,
		"therapistId": therapistID,
		"childName":   childName,
		"status":      domain.AccessPending,
	}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Respond transitions a request out of pending. The status precondition in the filter
// makes a second response to the same request fail with ErrConflict.
func (r *mongoAccessRequestRepository) Respond(ctx context.Context, id primitive.ObjectID, status domain.AccessRequestStatus, clientID *primitive.ObjectID, respondedAt time.Time) error {
	fields := bson.M{
		"status":      status,
		"respondedAt": respondedAt.UTC(),
		"updatedAt":   time.Now().UTC(),
	}
	if clientID != nil {
		fields["clientId"] = *clientID
	}

	filter := bson.M{"_id": id, "status": domain.AccessPending}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

func (r *mongoAccessRequestRepository) DeletePending(ctx context.Context, id, parentID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "parentId": parentID, "status": domain.AccessPending}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	return deletedOrNotFound(result)
}

// EnsureAccessRequestIndexes creates necessary indexes for the access_requests collection.
func EnsureAccessRequestIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "therapistId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "parentId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// One pending request per parent, therapist and child.
			Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "therapistId", Value: 1}, {Key: "childName", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.AccessPending}).
				SetName("unique_pending_request"),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
