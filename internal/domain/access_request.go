package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccessRequestStatus type for the parent-to-therapist linking workflow
type AccessRequestStatus string

const (
	AccessPending  AccessRequestStatus = "pending"
	AccessApproved AccessRequestStatus = "approved"
	AccessRejected AccessRequestStatus = "rejected"
)

func (s AccessRequestStatus) Valid() bool {
	return s == AccessPending || s == AccessApproved || s == AccessRejected
}

// AccessRequest is a parent's request to be linked to a client of a therapist.
type AccessRequest struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ParentID    primitive.ObjectID  `bson:"parentId" json:"parentId"`
	TherapistID primitive.ObjectID  `bson:"therapistId" json:"therapistId"`
	ClientID    *primitive.ObjectID `bson:"clientId,omitempty" json:"clientId,omitempty"` // Set on approval
	ChildName   string              `bson:"childName" json:"childName"`
	Message     string              `bson:"message,omitempty" json:"message,omitempty"`
	Status      AccessRequestStatus `bson:"status" json:"status"`
	RespondedAt *time.Time          `bson:"respondedAt,omitempty" json:"respondedAt,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}
