package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Template is a reusable list of activities owned by a therapist.
type Template struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TherapistID primitive.ObjectID `bson:"therapistId" json:"therapistId"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Activities  []Activity         `bson:"activities" json:"activities"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
