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

const clientCollectionName = "clients"

// mongoClientRepository implements repository.ClientRepository
type mongoClientRepository struct {
	collection *mongo.Collection
}

// NewMongoClientRepository creates a new Client repository backed by MongoDB.
func NewMongoClientRepository(db *mongo.Database) repository.ClientRepository {
	return &mongoClientRepository{
		collection: db.Collection(clientCollectionName),
	}
}

// Create inserts a new client record.
func (r *mongoClientRepository) Create(ctx context.Context, client *domain.Client) (primitive.ObjectID, error) {
	if client.TherapistID.IsZero() || client.FirstName == "" {
		return primitive.NilObjectID, errors.New("client requires therapistId and firstName")
	}

	client.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	if client.Status == "" {
		client.Status = domain.ClientActive
	}
	// Store empty arrays rather than null so array operators and "parentIds.0" queries work.
	if client.Goals == nil {
		client.Goals = []domain.Goal{}
	}
	if client.ParentIDs == nil {
		client.ParentIDs = []primitive.ObjectID{}
	}

	result, err := r.collection.InsertOne(ctx, client)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

func (r *mongoClientRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error) {
	var client domain.Client
	if err := findOne(ctx, r.collection, bson.M{"_id": id}, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *mongoClientRepository) GetOwned(ctx context.Context, id, therapistID primitive.ObjectID) (*domain.Client, error) {
	var client domain.Client
	filter := bson.M{"_id": id, "therapistId": therapistID}
	if err := findOne(ctx, r.collection, filter, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

// List returns one page of clients matching filter plus the total match count.
func (r *mongoClientRepository) List(ctx context.Context, filter repository.ClientFilter) ([]domain.Client, int64, error) {
	query := buildClientFilter(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := pageOptions(filter.Page).SetSort(bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}})
	clients := []domain.Client{}
	if err := findAll(ctx, r.collection, query, &clients, opts); err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// Update overwrites the editable profile fields of a client owned by client.TherapistID.
func (r *mongoClientRepository) Update(ctx context.Context, client *domain.Client) error {
	if client.ID.IsZero() {
		return errors.New("client ID is required for update")
	}
	client.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": client.ID, "therapistId": client.TherapistID}
	update := bson.M{"$set": bson.M{
		"firstName":   client.FirstName,
		"lastName":    client.LastName,
		"dateOfBirth": client.DateOfBirth,
		"diagnosis":   client.Diagnosis,
		"notes":       client.Notes,
		"status":      client.Status,
		"updatedAt":   client.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

func (r *mongoClientRepository) Delete(ctx context.Context, id, therapistID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "therapistId": therapistID})
	if err != nil {
		return err
	}
	return deletedOrNotFound(result)
}

func (r *mongoClientRepository) AddGoal(ctx context.Context, clientID, therapistID primitive.ObjectID, goal domain.Goal) error {
	filter := bson.M{"_id": clientID, "therapistId": therapistID}
	update := bson.M{
		"$push": bson.M{"goals": goal},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

// UpdateGoal sets every editable field of the matched embedded goal, so repeating
// the same update leaves the document unchanged.
func (r *mongoClientRepository) UpdateGoal(ctx context.Context, clientID, therapistID primitive.ObjectID, goal domain.Goal) error {
	filter := bson.M{"_id": clientID, "therapistId": therapistID, "goals.id": goal.ID}
	update := bson.M{"$set": bson.M{
		"goals.$.description": goal.Description,
		"goals.$.category":    goal.Category,
		"goals.$.targetDate":  goal.TargetDate,
		"goals.$.status":      goal.Status,
		"goals.$.progress":    goal.Progress,
		"goals.$.updatedAt":   goal.UpdatedAt,
		"updatedAt":           time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

func (r *mongoClientRepository) DeleteGoal(ctx context.Context, clientID, therapistID, goalID primitive.ObjectID) error {
	filter := bson.M{"_id": clientID, "therapistId": therapistID, "goals.id": goalID}
	update := bson.M{
		"$pull": bson.M{"goals": bson.M{"id": goalID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

func (r *mongoClientRepository) SetGoalProgress(ctx context.Context, clientID, goalID primitive.ObjectID, progress int, status domain.GoalStatus) error {
	now := time.Now().UTC()
	filter := bson.M{"_id": clientID, "goals.id": goalID}
	update := bson.M{"$set": bson.M{
		"goals.$.progress":  progress,
		"goals.$.status":    status,
		"goals.$.updatedAt": now,
		"updatedAt":         now,
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

// AddParent links a parent to a client; $addToSet keeps the operation idempotent.
func (r *mongoClientRepository) AddParent(ctx context.Context, clientID, parentID primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"parentIds": parentID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

func (r *mongoClientRepository) RemoveParent(ctx context.Context, clientID, therapistID, parentID primitive.ObjectID) error {
	filter := bson.M{"_id": clientID, "therapistId": therapistID, "parentIds": parentID}
	update := bson.M{
		"$pull": bson.M{"parentIds": parentID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

// EnsureClientIndexes creates necessary indexes for the clients collection.
func EnsureClientIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Default listing: a therapist's clients sorted by name
			Keys:    bson.D{{Key: "therapistId", Value: 1}, {Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "parentIds", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "therapistId", Value: 1}, {Key: "goals.status", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
