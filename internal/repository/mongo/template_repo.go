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

const templateCollectionName = "templates"

// mongoTemplateRepository implements repository.TemplateRepository
type mongoTemplateRepository struct {
	collection *mongo.Collection
}

// NewMongoTemplateRepository creates a new Template repository backed by MongoDB.
func NewMongoTemplateRepository(db *mongo.Database) repository.TemplateRepository {
	return &mongoTemplateRepository{
		collection: db.Collection(templateCollectionName),
	}
}

func (r *mongoTemplateRepository) Create(ctx context.Context, template *domain.Template) (primitive.ObjectID, error) {
	if template.TherapistID.IsZero() || template.Name == "" {
		return primitive.NilObjectID, errors.New("template requires therapistId and name")
	}

	template.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now
	if template.Activities == nil {
		template.Activities = []domain.Activity{}
	}

	result, err := r.collection.InsertOne(ctx, template)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

func (r *mongoTemplateRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Template, error) {
	var template domain.Template
	if err := findOne(ctx, r.collection, bson.M{"_id": id}, &template); err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *mongoTemplateRepository) GetByTherapistID(ctx context.Context, therapistID primitive.ObjectID) ([]domain.Template, error) {
	templates := []domain.Template{}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if err := findAll(ctx, r.collection, bson.M{"therapistId": therapistID}, &templates, opts); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *mongoTemplateRepository) Update(ctx context.Context, template *domain.Template) error {
	if template.ID.IsZero() {
		return errors.New("template ID is required for update")
	}
	template.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": template.ID, "therapistId": template.TherapistID}
	update := bson.M{"$set": bson.M{
		"name":        template.Name,
		"description": template.Description,
		"activities":  template.Activities,
		"updatedAt":   template.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return matchedOrNotFound(result)
}

func (r *mongoTemplateRepository) Delete(ctx context.Context, id, therapistID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "therapistId": therapistID})
	if err != nil {
		return err
	}
	return deletedOrNotFound(result)
}

// EnsureTemplateIndexes creates necessary indexes for the templates collection.
func EnsureTemplateIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Template names are unique per therapist
			Keys:    bson.D{{Key: "therapistId", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
