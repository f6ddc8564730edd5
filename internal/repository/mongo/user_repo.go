package mongo

import (
	"context"
	"fmt"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.Role == "" {
		return primitive.NilObjectID, fmt.Errorf("user email and role are required")
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	return r.getOne(ctx, bson.M{"googleId": googleID})
}

func (r *mongoUserRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	return r.getOne(ctx, bson.M{"subscription.customerId": customerID})
}

func (r *mongoUserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	return r.getOne(ctx, bson.M{"passwordReset.tokenHash": tokenHash})
}

func (r *mongoUserRepository) getOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := findOne(ctx, r.collection, filter, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs retrieves all users whose IDs are in ids.
func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	var users []domain.User
	filter := bson.M{"_id": bson.M{"$in": ids}}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if err := findAll(ctx, r.collection, filter, &users, opts); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *mongoUserRepository) SetGoogleID(ctx context.Context, id primitive.ObjectID, googleID string) error {
	return r.set(ctx, id, bson.M{"googleId": googleID})
}

// UpdatePassword stores a new hash and invalidates any outstanding reset token.
func (r *mongoUserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	update := bson.M{
		"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"passwordReset": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

func (r *mongoUserRepository) SetPasswordReset(ctx context.Context, id primitive.ObjectID, reset *domain.PasswordReset) error {
	return r.set(ctx, id, bson.M{"passwordReset": reset})
}

func (r *mongoUserRepository) UpdateMFA(ctx context.Context, id primitive.ObjectID, mfa domain.MFASettings) error {
	return r.set(ctx, id, bson.M{"mfa": mfa})
}

func (r *mongoUserRepository) SetStripeCustomer(ctx context.Context, id primitive.ObjectID, customerID string) error {
	return r.set(ctx, id, bson.M{"subscription.customerId": customerID})
}

func (r *mongoUserRepository) UpdateSubscription(ctx context.Context, id primitive.ObjectID, tier domain.Tier, sub domain.Subscription) error {
	return r.set(ctx, id, bson.M{"tier": tier, "subscription": sub})
}

func (r *mongoUserRepository) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updatedAt"] = time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	return matchedOrNotFound(result)
}

// ResetMonthlyUsage only matches users whose stored period is older than periodStart,
// so concurrent callers reset a given month at most once.
func (r *mongoUserRepository) ResetMonthlyUsage(ctx context.Context, id primitive.ObjectID, periodStart time.Time) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"usage.periodStart": bson.M{"$lt": periodStart}},
			bson.M{"usage.periodStart": bson.M{"$exists": false}},
		},
	}
	update := bson.M{"$set": bson.M{
		"usage.sessionsThisMonth": 0,
		"usage.reportsThisMonth":  0,
		"usage.periodStart":       periodStart,
	}}
	_, err := r.collection.UpdateOne(ctx, filter, update)
	return err
}

// IncrementUsage performs the limit check and the increment in a single conditional update.
func (r *mongoUserRepository) IncrementUsage(ctx context.Context, id primitive.ObjectID, resource domain.Resource, limit int) (bool, error) {
	field, err := usageField(resource)
	if err != nil {
		return false, err
	}

	filter := bson.M{"_id": id}
	if limit >= 0 {
		filter[field] = bson.M{"$lt": limit}
	}
	update := bson.M{"$inc": bson.M{field: 1}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	// Distinguish "limit reached" from "no such user".
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, repository.ErrNotFound
	}
	return false, nil
}

func (r *mongoUserRepository) DecrementUsage(ctx context.Context, id primitive.ObjectID, resource domain.Resource) error {
	field, err := usageField(resource)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": id, field: bson.M{"$gt": 0}}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: -1}})
	return err
}

func usageField(resource domain.Resource) (string, error) {
	switch resource {
	case domain.ResourceClients:
		return "usage.clientCount", nil
	case domain.ResourceSessions:
		return "usage.sessionsThisMonth", nil
	case domain.ResourceReports:
		return "usage.reportsThisMonth", nil
	}
	return "", fmt.Errorf("unknown usage resource %q", resource)
}

// EnsureUserIndexes creates necessary indexes for the users collection.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "subscription.customerId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "passwordReset.tokenHash", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
